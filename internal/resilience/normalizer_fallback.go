package resilience

import (
	"context"
	"time"

	"github.com/MrWong99/reelwright/pkg/audio"
)

// NormalizerFallback is an [audio.Normalizer] over an ordered list of media
// backends, typically ffmpeg first and the in-process decoder second. A
// container the first backend cannot read is retried on the next.
type NormalizerFallback struct {
	*FallbackGroup[audio.Normalizer]
}

var _ audio.Normalizer = (*NormalizerFallback)(nil)

// NewNormalizerFallback returns a group with primary tried first.
func NewNormalizerFallback(primary audio.Normalizer, primaryName string, cfg FallbackConfig) *NormalizerFallback {
	return &NormalizerFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

func (f *NormalizerFallback) Normalize(ctx context.Context, src, dst string) error {
	return f.Execute(func(n audio.Normalizer) error { return n.Normalize(ctx, src, dst) })
}

func (f *NormalizerFallback) Duration(ctx context.Context, path string) (float64, error) {
	return ExecuteWithResult(f.FallbackGroup, func(n audio.Normalizer) (float64, error) {
		return n.Duration(ctx, path)
	})
}

func (f *NormalizerFallback) Extract(ctx context.Context, src, dst string, start, dur time.Duration) error {
	return f.Execute(func(n audio.Normalizer) error { return n.Extract(ctx, src, dst, start, dur) })
}
