// Package mock provides an in-memory implementation of [audio.Normalizer] for
// use in unit tests.
//
// The mock is safe for concurrent use. It records every call so tests can
// assert on arguments, and exposes exported fields that control the results.
//
// Typical usage:
//
//	n := &mock.Normalizer{DurationResult: 130}
//	n.ExtractErr = map[int]error{1: errors.New("boom")}
//	splitter := audio.NewSplitter(n, 48*time.Second)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/reelwright/pkg/audio"
)

// Compile-time assertion that Normalizer implements audio.Normalizer.
var _ audio.Normalizer = (*Normalizer)(nil)

// ExtractCall records a single Extract invocation.
type ExtractCall struct {
	Src, Dst   string
	Start, Dur time.Duration
}

// Normalizer is a mock implementation of [audio.Normalizer].
type Normalizer struct {
	mu sync.Mutex

	// NormalizeErr is returned by every Normalize call.
	NormalizeErr error

	// DurationResult is returned by Duration, in seconds.
	DurationResult float64

	// DurationErr is returned by Duration when non-nil.
	DurationErr error

	// ExtractErr maps the zero-based ordinal of an Extract call to the error
	// it returns. A Splitter extracts in segment order, so the ordinal equals
	// the segment index.
	ExtractErr map[int]error

	// NormalizeCalls records the (src, dst) pairs passed to Normalize.
	NormalizeCalls [][2]string

	// DurationCalls records the paths passed to Duration.
	DurationCalls []string

	// ExtractCalls records every Extract call in order.
	ExtractCalls []ExtractCall
}

// Normalize implements audio.Normalizer.
func (n *Normalizer) Normalize(_ context.Context, src, dst string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.NormalizeCalls = append(n.NormalizeCalls, [2]string{src, dst})
	return n.NormalizeErr
}

// Duration implements audio.Normalizer.
func (n *Normalizer) Duration(_ context.Context, path string) (float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.DurationCalls = append(n.DurationCalls, path)
	if n.DurationErr != nil {
		return 0, n.DurationErr
	}
	return n.DurationResult, nil
}

// Extract implements audio.Normalizer.
func (n *Normalizer) Extract(_ context.Context, src, dst string, start, dur time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := len(n.ExtractCalls)
	n.ExtractCalls = append(n.ExtractCalls, ExtractCall{Src: src, Dst: dst, Start: start, Dur: dur})
	return n.ExtractErr[key]
}
