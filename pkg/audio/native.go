package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"layeh.com/gopus"
)

const (
	opusSampleRate = 48000
	// opusMaxFrameSize is the largest Opus frame (120 ms at 48 kHz).
	opusMaxFrameSize = 5760
)

// errUnsupportedContainer is returned for inputs that Native cannot decode.
var errUnsupportedContainer = errors.New("unsupported container (want WAV or Ogg/Opus)")

// Compile-time assertion that Native implements Normalizer.
var _ Normalizer = (*Native)(nil)

// Native is an in-process [Normalizer]. It understands 16-bit PCM WAV at any
// rate and channel count, and Ogg/Opus (the format of chat voice messages),
// which it decodes with libopus. Everything else fails with a
// *[ConversionError] so a [Normalizer] chain can fall through to [FFmpeg].
type Native struct{}

// NewNative returns a Native normalizer.
func NewNative() *Native { return &Native{} }

// Normalize implements Normalizer.
func (n *Native) Normalize(ctx context.Context, src, dst string) error {
	pcm, f, err := n.decode(ctx, src)
	if err != nil {
		return &ConversionError{Op: "normalize", Path: src, Err: err}
	}
	if err := WriteWAV(dst, ToTarget(pcm, f), Target); err != nil {
		return &ConversionError{Op: "normalize", Path: src, Err: err}
	}
	return nil
}

// Duration implements Normalizer.
func (n *Native) Duration(ctx context.Context, path string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &ConversionError{Op: "duration", Path: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &ConversionError{Op: "duration", Path: path, Err: err}
	}
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		pcm, f, err := DecodeWAV(data)
		if err != nil {
			return 0, &ConversionError{Op: "duration", Path: path, Err: err}
		}
		return PCMDuration(len(pcm), f).Seconds(), nil
	case bytes.HasPrefix(data, oggCapture):
		s, err := demuxOggOpus(data)
		if err != nil {
			return 0, &ConversionError{Op: "duration", Path: path, Err: err}
		}
		samples := s.granule - int64(s.preSkip)
		if samples < 0 {
			samples = 0
		}
		return float64(samples) / opusSampleRate, nil
	default:
		return 0, &ConversionError{Op: "duration", Path: path, Err: errUnsupportedContainer}
	}
}

// Extract implements Normalizer.
func (n *Native) Extract(ctx context.Context, src, dst string, start, dur time.Duration) error {
	pcm, f, err := n.decode(ctx, src)
	if err != nil {
		return &ConversionError{Op: "extract", Path: src, Err: err}
	}
	from := min(pcmOffset(start, f), len(pcm))
	to := min(pcmOffset(start+dur, f), len(pcm))
	if from >= to {
		return &ConversionError{Op: "extract", Path: src,
			Err: fmt.Errorf("slice %s+%s is outside the %s source", start, dur, PCMDuration(len(pcm), f))}
	}
	if err := WriteWAV(dst, ToTarget(pcm[from:to], f), Target); err != nil {
		return &ConversionError{Op: "extract", Path: src, Err: err}
	}
	return nil
}

func (n *Native) decode(ctx context.Context, path string) ([]byte, Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, Format{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Format{}, err
	}
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return DecodeWAV(data)
	case bytes.HasPrefix(data, oggCapture):
		return decodeOggOpus(ctx, data)
	default:
		return nil, Format{}, errUnsupportedContainer
	}
}

// decodeOggOpus decodes every packet of an Ogg/Opus file into interleaved
// 48 kHz PCM, trimming the encoder pre-skip.
func decodeOggOpus(ctx context.Context, data []byte) ([]byte, Format, error) {
	s, err := demuxOggOpus(data)
	if err != nil {
		return nil, Format{}, err
	}
	dec, err := gopus.NewDecoder(opusSampleRate, s.channels)
	if err != nil {
		return nil, Format{}, fmt.Errorf("create opus decoder: %w", err)
	}

	var samples []int16
	for i, pkt := range s.packets {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, Format{}, err
			}
		}
		if len(pkt) == 0 {
			continue
		}
		pcm, err := dec.Decode(pkt, opusMaxFrameSize, false)
		if err != nil {
			return nil, Format{}, fmt.Errorf("opus decode packet %d: %w", i, err)
		}
		samples = append(samples, pcm...)
	}

	skip := min(s.preSkip*s.channels, len(samples))
	samples = samples[skip:]
	// The final granule position marks the true end of the stream.
	if s.granule > 0 {
		if end := int(s.granule-int64(s.preSkip)) * s.channels; end >= 0 && end < len(samples) {
			samples = samples[:end]
		}
	}
	return int16sToBytes(samples), Format{SampleRate: opusSampleRate, Channels: s.channels}, nil
}
