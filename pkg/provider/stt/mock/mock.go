// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to script per-segment outcomes and to inspect which segment
// files were submitted.
//
// Example:
//
//	p := &mock.Provider{
//	    Results: map[string]string{"/tmp/seg-000.wav": "salom"},
//	    Errors:  map[string]error{"/tmp/seg-001.wav": errors.New("boom")},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/reelwright/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// TranscribeFunc, if set, overrides every other field.
	TranscribeFunc func(ctx context.Context, req stt.Request) (string, error)

	// Results maps a segment path to the transcript returned for it.
	Results map[string]string

	// Errors maps a segment path to the error returned for it.
	Errors map[string]error

	// Default is returned for paths missing from Results and Errors.
	Default string

	// TranscribeCalls records every request in call order.
	TranscribeCalls []stt.Request
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns the scripted outcome.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, req)
	fn := p.TranscribeFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.Errors[req.Path]; ok {
		return "", err
	}
	if text, ok := p.Results[req.Path]; ok {
		return text, nil
	}
	return p.Default, nil
}

// Calls returns a copy of the recorded requests. Thread-safe.
func (p *Provider) Calls() []stt.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]stt.Request(nil), p.TranscribeCalls...)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
