package audio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Plan computes the segment layout for a waveform of length total when no
// segment may exceed limit. The result covers [0, total) with no gaps or
// overlaps. Paths are left empty.
//
// If total ≤ limit, Plan returns a single segment spanning the whole source.
// Otherwise it returns ⌈total/limit⌉ segments of length limit, except for the
// last which holds the remainder. A remainder of any length, however small,
// is kept as its own segment so the durations always sum to total.
func Plan(total, limit time.Duration) ([]Segment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("audio: segment duration must be positive, got %s", limit)
	}
	if total <= 0 {
		return nil, fmt.Errorf("audio: source duration must be positive, got %s", total)
	}
	if total <= limit {
		return []Segment{{Index: 0, Start: 0, Duration: total}}, nil
	}

	n := int((total + limit - 1) / limit)
	segs := make([]Segment, 0, n)
	for i := range n {
		start := time.Duration(i) * limit
		segs = append(segs, Segment{
			Index:    i,
			Start:    start,
			Duration: min(limit, total-start),
		})
	}
	return segs, nil
}

// Splitter slices normalized waveforms into bounded-duration segments.
type Splitter struct {
	normalizer Normalizer
	max        time.Duration
}

// NewSplitter returns a Splitter that extracts segments through n. A
// non-positive limit selects [DefaultSegmentDuration].
func NewSplitter(n Normalizer, limit time.Duration) *Splitter {
	if limit <= 0 {
		limit = DefaultSegmentDuration
	}
	return &Splitter{normalizer: n, max: limit}
}

// MaxDuration returns the longest segment the splitter produces.
func (s *Splitter) MaxDuration() time.Duration { return s.max }

// Split plans and extracts the segments of the normalized waveform at wav,
// writing extracted slices into dir.
//
// A source no longer than the maximum yields exactly one segment whose Path
// is wav itself; nothing is re-encoded. Longer sources are extracted one
// segment at a time. A planning failure is returned alone with nil segments.
// Extraction failures do not stop the remaining extractions: the failed
// segments are still returned (with an empty Path) alongside an error that
// joins one *[SegmentError] per failure.
func (s *Splitter) Split(ctx context.Context, wav, dir string, total time.Duration) ([]Segment, error) {
	segs, err := Plan(total, s.max)
	if err != nil {
		return nil, err
	}
	if len(segs) == 1 {
		segs[0].Path = wav
		return segs, nil
	}

	var errs []error
	for i := range segs {
		path := filepath.Join(dir, fmt.Sprintf("segment-%03d.wav", segs[i].Index))
		if err := s.normalizer.Extract(ctx, wav, path, segs[i].Start, segs[i].Duration); err != nil {
			errs = append(errs, &SegmentError{Index: segs[i].Index, Err: err})
			continue
		}
		segs[i].Path = path
	}
	return segs, errors.Join(errs...)
}
