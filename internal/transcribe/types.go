// Package transcribe turns one user recording into text.
//
// A [Pipeline] normalizes the recording to the canonical 16 kHz mono
// waveform, slices it into bounded-duration segments, transcribes each
// segment and merges the partial texts in segment order. A failing segment
// never aborts the run: it contributes nothing to the merged text. Only
// failures before any segment exists (size guard, normalization, probing,
// planning) are fatal and returned as *[Error].
package transcribe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle position of one submission.
type State int

const (
	StateReceived State = iota
	StateNormalizing
	StateSplitting
	StateTranscribing
	StateMerging
	StateDone
	StateFailed
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateNormalizing:
		return "normalizing"
	case StateSplitting:
		return "splitting"
	case StateTranscribing:
		return "transcribing"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Observer is notified on every state change of a run. It is called
// synchronously from the run's goroutine and must not block.
type Observer func(id string, s State)

var (
	// ErrSourceTooLarge is returned when a submission exceeds the configured
	// size limit. The recording is not touched.
	ErrSourceTooLarge = errors.New("transcribe: source too large")

	// ErrNoSpeech is reported by [Result.Err] when no segment produced text.
	// The pipeline itself never returns it.
	ErrNoSpeech = errors.New("transcribe: no speech recognised")
)

// Error is a fatal pipeline failure together with the state it occurred in.
type Error struct {
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcribe: %s: %v", e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Submission is one recording handed to the pipeline.
type Submission struct {
	// Path is the recording on local disk, in any format the normalizer
	// understands.
	Path string

	// Size is the declared size in bytes. Zero means unknown; the file is
	// then measured.
	Size int64

	// Duration is the declared playback length, if the sender knows it. It
	// is informational only: the probed duration of the normalized waveform
	// drives segmentation.
	Duration time.Duration

	// Language overrides the pipeline's language hint when non-empty.
	Language string
}

// SegmentResult is the outcome of transcribing one segment.
type SegmentResult struct {
	Index    int
	Start    time.Duration
	Duration time.Duration

	// Text is the trimmed transcript, empty when the backend heard nothing
	// or the segment failed.
	Text string

	// Err is the extraction or transcription error, if any.
	Err error
}

// OK reports whether the segment contributes to the merged text.
func (r SegmentResult) OK() bool { return r.Err == nil && r.Text != "" }

// Status classifies a finished run.
type Status int

const (
	// StatusSuccess means at least one segment produced text.
	StatusSuccess Status = iota

	// StatusEmpty means every segment failed or was silent.
	StatusEmpty
)

func (s Status) String() string {
	if s == StatusEmpty {
		return "empty"
	}
	return "success"
}

// Result is the outcome of a completed run.
type Result struct {
	// ID identifies the run in logs and in the archive directory.
	ID string

	Status Status

	// Text is the merged transcript: the non-empty segment texts in segment
	// order, joined by a single space.
	Text string

	// Segments holds one entry per planned segment, in index order.
	Segments []SegmentResult

	// Duration is the probed length of the normalized recording.
	Duration time.Duration

	// ArchivePath is the directory holding the archived waveform and
	// transcript, empty when archiving is disabled or failed.
	ArchivePath string
}

// Err returns [ErrNoSpeech] for an empty result and nil otherwise.
func (r *Result) Err() error {
	if r.Status == StatusEmpty {
		return ErrNoSpeech
	}
	return nil
}

// Failed returns the number of segments that ended with an error.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Segments {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Merge joins the non-empty texts of results in slice order.
func Merge(results []SegmentResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.OK() {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, " ")
}
