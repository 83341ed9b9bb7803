package audio_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/reelwright/pkg/audio"
	"github.com/MrWong99/reelwright/pkg/audio/mock"
)

func TestPlan_ShortSourceIsOneSegment(t *testing.T) {
	t.Parallel()
	for _, total := range []time.Duration{time.Millisecond, 10 * time.Second, 48 * time.Second} {
		segs, err := audio.Plan(total, 48*time.Second)
		if err != nil {
			t.Fatalf("Plan(%s): %v", total, err)
		}
		if len(segs) != 1 {
			t.Fatalf("Plan(%s) = %d segments, want 1", total, len(segs))
		}
		if segs[0].Start != 0 || segs[0].Duration != total {
			t.Errorf("Plan(%s) = %+v, want whole source", total, segs[0])
		}
	}
}

func TestPlan_LongSource(t *testing.T) {
	t.Parallel()
	const d = 48 * time.Second
	totals := []time.Duration{
		48*time.Second + time.Millisecond,
		96 * time.Second,
		130 * time.Second,
		10*time.Minute + 333*time.Millisecond,
		96*time.Second + 5*time.Millisecond, // sub-10ms tail keeps its own segment
	}
	for _, total := range totals {
		segs, err := audio.Plan(total, d)
		if err != nil {
			t.Fatalf("Plan(%s): %v", total, err)
		}
		want := int(math.Ceil(total.Seconds() / d.Seconds()))
		if len(segs) != want {
			t.Fatalf("Plan(%s) = %d segments, want %d", total, len(segs), want)
		}
		var sum time.Duration
		for i, s := range segs {
			if s.Index != i {
				t.Errorf("segment %d has index %d", i, s.Index)
			}
			if s.Start != time.Duration(i)*d {
				t.Errorf("segment %d starts at %s, want %s", i, s.Start, time.Duration(i)*d)
			}
			if s.Duration <= 0 || s.Duration > d {
				t.Errorf("segment %d duration %s out of range", i, s.Duration)
			}
			sum += s.Duration
		}
		if sum != total {
			t.Errorf("Plan(%s) durations sum to %s", total, sum)
		}
	}
}

func TestPlan_Example130s(t *testing.T) {
	t.Parallel()
	segs, err := audio.Plan(130*time.Second, 48*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Duration{48 * time.Second, 48 * time.Second, 34 * time.Second}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d", len(segs), len(want))
	}
	for i, w := range want {
		if segs[i].Duration != w {
			t.Errorf("segment %d = %s, want %s", i, segs[i].Duration, w)
		}
	}
}

func TestPlan_InvalidInput(t *testing.T) {
	t.Parallel()
	if _, err := audio.Plan(0, time.Second); err == nil {
		t.Error("expected error for zero total")
	}
	if _, err := audio.Plan(time.Second, 0); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestSplit_SingleSegmentReferencesSource(t *testing.T) {
	t.Parallel()
	n := &mock.Normalizer{}
	s := audio.NewSplitter(n, 48*time.Second)

	segs, err := s.Split(context.Background(), "/scratch/normalized.wav", "/scratch", 30*time.Second)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(segs) != 1 || segs[0].Path != "/scratch/normalized.wav" {
		t.Fatalf("segments = %+v", segs)
	}
	if len(n.ExtractCalls) != 0 {
		t.Errorf("Extract called %d times, want 0", len(n.ExtractCalls))
	}
}

func TestSplit_ExtractsEachSegment(t *testing.T) {
	t.Parallel()
	n := &mock.Normalizer{}
	s := audio.NewSplitter(n, 48*time.Second)

	segs, err := s.Split(context.Background(), "/scratch/normalized.wav", "/scratch", 130*time.Second)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(segs) != 3 || len(n.ExtractCalls) != 3 {
		t.Fatalf("got %d segments and %d extractions, want 3 and 3", len(segs), len(n.ExtractCalls))
	}
	for i, call := range n.ExtractCalls {
		if call.Src != "/scratch/normalized.wav" {
			t.Errorf("call %d src = %q", i, call.Src)
		}
		if call.Start != segs[i].Start || call.Dur != segs[i].Duration {
			t.Errorf("call %d = %s+%s, want %s+%s", i, call.Start, call.Dur, segs[i].Start, segs[i].Duration)
		}
		if segs[i].Path != call.Dst || segs[i].Path == "" {
			t.Errorf("segment %d path %q, extract dst %q", i, segs[i].Path, call.Dst)
		}
	}
}

func TestSplit_ExtractionFailureIsPerSegment(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	n := &mock.Normalizer{ExtractErr: map[int]error{1: boom}}
	s := audio.NewSplitter(n, 48*time.Second)

	segs, err := s.Split(context.Background(), "src.wav", t.TempDir(), 130*time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	var segErr *audio.SegmentError
	if !errors.As(err, &segErr) {
		t.Fatalf("error %v is not a SegmentError", err)
	}
	if segErr.Index != 1 || !errors.Is(err, boom) {
		t.Errorf("SegmentError = %+v", segErr)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[0].Path == "" || segs[1].Path != "" || segs[2].Path == "" {
		t.Errorf("paths = %q %q %q", segs[0].Path, segs[1].Path, segs[2].Path)
	}
}

func TestSplit_PlanningFailure(t *testing.T) {
	t.Parallel()
	s := audio.NewSplitter(&mock.Normalizer{}, 0)
	if s.MaxDuration() != audio.DefaultSegmentDuration {
		t.Errorf("MaxDuration = %s", s.MaxDuration())
	}
	segs, err := s.Split(context.Background(), "src.wav", "", 0)
	if err == nil || segs != nil {
		t.Fatalf("Split = %v, %v; want nil, error", segs, err)
	}
	var segErr *audio.SegmentError
	if errors.As(err, &segErr) {
		t.Error("planning failure must not be a SegmentError")
	}
}
