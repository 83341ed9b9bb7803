package audio

import (
	"context"
	"time"
)

// Normalizer converts arbitrary recordings into the canonical waveform.
//
// Implementations report every failure as a *[ConversionError]. None of the
// operations retry; a conversion failure is fatal for the submission that
// triggered it.
type Normalizer interface {
	// Normalize transcodes src into a 16 kHz mono 16-bit WAV file at dst.
	Normalize(ctx context.Context, src, dst string) error

	// Duration returns the playback length of the file at path in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// Extract re-encodes the [start, start+dur) slice of src as a canonical
	// WAV file at dst.
	Extract(ctx context.Context, src, dst string, start, dur time.Duration) error
}
