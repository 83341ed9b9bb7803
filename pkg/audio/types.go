// Package audio turns arbitrary user recordings into the canonical waveform
// consumed by speech-to-text backends and slices long waveforms into
// bounded-duration segments.
//
// The canonical form is 16-bit signed little-endian PCM, mono, 16 kHz, stored
// in a RIFF/WAV container. Conversion is hidden behind [Normalizer] so the
// transcription pipeline never depends on how (or whether) a subprocess is
// invoked: [FFmpeg] shells out to ffmpeg/ffprobe, [Native] decodes WAV and
// Ogg/Opus in-process.
package audio

import (
	"errors"
	"fmt"
	"time"
)

const (
	// TargetSampleRate is the sample rate of every normalized waveform.
	TargetSampleRate = 16000

	// TargetChannels is the channel count of every normalized waveform.
	TargetChannels = 1

	// DefaultSegmentDuration is the longest slice sent to a transcription
	// backend in one request.
	DefaultSegmentDuration = 48 * time.Second
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Target is the canonical normalized format.
var Target = Format{SampleRate: TargetSampleRate, Channels: TargetChannels}

// String returns a human-readable form such as "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Segment is one bounded-duration slice of a normalized waveform.
//
// Segments produced by a [Splitter] have strictly increasing Start values and
// belong to exactly one pipeline run.
type Segment struct {
	// Index is the zero-based ordinal of the segment within its submission.
	Index int

	// Start is the offset of the segment from the beginning of the source.
	Start time.Duration

	// Duration is the length of the segment; never more than the splitter's
	// maximum.
	Duration time.Duration

	// Path is the WAV file holding the segment audio. For single-segment
	// submissions it is the normalized source itself.
	Path string
}

// ErrConversion is matched by every [ConversionError] via errors.Is.
var ErrConversion = errors.New("audio: conversion failed")

// ConversionError reports a failed transcode, probe or extraction.
type ConversionError struct {
	// Op is the failed operation: "normalize", "duration" or "extract".
	Op string

	// Path is the input file of the operation.
	Path string

	// Stderr holds diagnostic output of the conversion tool, if any.
	Stderr string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("audio: %s %s: %v", e.Op, e.Path, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConversionError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrConversion].
func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// SegmentError reports the failure to extract one segment. It is distinct
// from planning failures: the caller decides whether the remaining segments
// are still worth processing.
type SegmentError struct {
	Index int
	Err   error
}

// Error implements error.
func (e *SegmentError) Error() string {
	return fmt.Sprintf("audio: segment %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SegmentError) Unwrap() error { return e.Err }
