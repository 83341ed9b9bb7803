package resilience

import (
	"context"

	"github.com/MrWong99/reelwright/pkg/provider/stt"
)

// STTFallback is an [stt.Provider] that fails over between transcription
// backends. Once a dead backend's breaker trips, segments stop paying its
// timeout.
type STTFallback struct {
	*FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback returns a group with primary tried first.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Transcribe submits one segment.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	return ExecuteWithResult(f.FallbackGroup, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, req)
	})
}
