package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/reelwright/internal/observe"
	"github.com/MrWong99/reelwright/pkg/audio"
	audiomock "github.com/MrWong99/reelwright/pkg/audio/mock"
	"github.com/MrWong99/reelwright/pkg/provider/stt"
	sttmock "github.com/MrWong99/reelwright/pkg/provider/stt/mock"
)

// writingNormalizer materialises the normalized file so archiving has
// something to copy.
type writingNormalizer struct {
	*audiomock.Normalizer
}

func (w writingNormalizer) Normalize(ctx context.Context, src, dst string) error {
	if err := w.Normalizer.Normalize(ctx, src, dst); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("RIFF"), 0o600)
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func segmentCount(t *testing.T, reader *sdkmetric.ManualReader, outcome string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "reelwright.segments" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("outcome"); ok && v.AsString() == outcome {
					return dp.Value
				}
			}
		}
	}
	return 0
}

// source writes a small file standing in for an uploaded recording.
func source(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.ogg")
	if err := os.WriteFile(path, []byte("OggS fake"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// byName scripts the backend by segment file name.
func byName(texts map[string]string, errs map[string]error) func(context.Context, stt.Request) (string, error) {
	return func(_ context.Context, req stt.Request) (string, error) {
		name := filepath.Base(req.Path)
		if err, ok := errs[name]; ok {
			return "", err
		}
		return texts[name], nil
	}
}

func TestRun_PartialFailureStillMerges(t *testing.T) {
	t.Parallel()

	norm := &audiomock.Normalizer{DurationResult: 130}
	backend := &sttmock.Provider{TranscribeFunc: byName(
		map[string]string{"segment-000.wav": " hello ", "segment-002.wav": "world"},
		map[string]error{"segment-001.wav": errors.New("503 from backend")},
	)}
	metrics, reader := newTestMetrics(t)
	p := New(norm, backend, WithScratchDir(t.TempDir()), WithMetrics(metrics))

	res, err := p.Run(context.Background(), Submission{Path: source(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Errorf("Status = %s, want success", res.Status)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want %q", res.Text, "hello world")
	}
	if len(res.Segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(res.Segments))
	}
	wantDur := []time.Duration{48 * time.Second, 48 * time.Second, 34 * time.Second}
	for i, s := range res.Segments {
		if s.Index != i || s.Duration != wantDur[i] {
			t.Errorf("segment %d = {Index:%d Duration:%s}, want {%d %s}", i, s.Index, s.Duration, i, wantDur[i])
		}
	}
	if res.Segments[1].Err == nil {
		t.Error("segment 1 should carry the backend error")
	}
	if res.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", res.Failed())
	}
	if res.Duration != 130*time.Second {
		t.Errorf("Duration = %s, want 130s", res.Duration)
	}
	if res.Err() != nil {
		t.Errorf("Err() = %v, want nil", res.Err())
	}

	for _, c := range backend.Calls() {
		if c.SampleRate != 16000 || c.Channels != 1 {
			t.Errorf("request format = %d/%d, want 16000/1", c.SampleRate, c.Channels)
		}
	}
	if got := segmentCount(t, reader, "ok"); got != 2 {
		t.Errorf("ok segments = %d, want 2", got)
	}
	if got := segmentCount(t, reader, "failed"); got != 1 {
		t.Errorf("failed segments = %d, want 1", got)
	}
}

func TestRun_AllSegmentsFailIsEmptyNotError(t *testing.T) {
	t.Parallel()

	norm := &audiomock.Normalizer{DurationResult: 100}
	backend := &sttmock.Provider{TranscribeFunc: func(context.Context, stt.Request) (string, error) {
		return "", errors.New("timeout")
	}}
	p := New(norm, backend, WithScratchDir(t.TempDir()))

	res, err := p.Run(context.Background(), Submission{Path: source(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusEmpty || res.Text != "" {
		t.Errorf("got status %s text %q, want empty", res.Status, res.Text)
	}
	if !errors.Is(res.Err(), ErrNoSpeech) {
		t.Errorf("Err() = %v, want ErrNoSpeech", res.Err())
	}
}

func TestRun_SilentSegmentsAreEmpty(t *testing.T) {
	t.Parallel()

	norm := &audiomock.Normalizer{DurationResult: 10}
	backend := &sttmock.Provider{Default: "   "}
	p := New(norm, backend, WithScratchDir(t.TempDir()))

	res, err := p.Run(context.Background(), Submission{Path: source(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusEmpty {
		t.Errorf("Status = %s, want empty", res.Status)
	}
	if res.Failed() != 0 {
		t.Errorf("silent segments are not failures, got %d", res.Failed())
	}
}

func TestRun_ShortSourceIsNotReencoded(t *testing.T) {
	t.Parallel()

	norm := &audiomock.Normalizer{DurationResult: 48}
	backend := &sttmock.Provider{Default: "salom"}
	p := New(norm, backend, WithScratchDir(t.TempDir()))

	res, err := p.Run(context.Background(), Submission{Path: source(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(norm.ExtractCalls) != 0 {
		t.Errorf("Extract called %d times for a single segment", len(norm.ExtractCalls))
	}
	calls := backend.Calls()
	if len(calls) != 1 || filepath.Base(calls[0].Path) != "normalized.wav" {
		t.Errorf("backend calls = %+v, want the normalized file", calls)
	}
	if res.Text != "salom" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestRun_MergeOrderIgnoresCompletionOrder(t *testing.T) {
	t.Parallel()

	norm := &audiomock.Normalizer{DurationResult: 140}
	done := map[string]chan struct{}{
		"segment-001.wav": make(chan struct{}),
		"segment-002.wav": make(chan struct{}),
	}
	var mu sync.Mutex
	var finished []string
	backend := &sttmock.Provider{TranscribeFunc: func(ctx context.Context, req stt.Request) (string, error) {
		name := filepath.Base(req.Path)
		// 2 finishes first, then 1, then 0.
		switch name {
		case "segment-000.wav":
			<-done["segment-001.wav"]
		case "segment-001.wav":
			<-done["segment-002.wav"]
		}
		mu.Lock()
		finished = append(finished, name)
		mu.Unlock()
		if ch, ok := done[name]; ok {
			close(ch)
		}
		return map[string]string{
			"segment-000.wav": "one",
			"segment-001.wav": "two",
			"segment-002.wav": "three",
		}[name], nil
	}}
	p := New(norm, backend, WithScratchDir(t.TempDir()), WithConcurrency(3))

	res, err := p.Run(context.Background(), Submission{Path: source(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "one two three" {
		t.Errorf("Text = %q, want %q", res.Text, "one two three")
	}
	want := []string{"segment-002.wav", "segment-001.wav", "segment-000.wav"}
	if !slices.Equal(finished, want) {
		t.Errorf("completion order = %v, want %v", finished, want)
	}
}

func TestRun_ExtractFailureSkipsSegment(t *testing.T) {
	t.Parallel()

	boom := errors.New("extract boom")
	norm := &audiomock.Normalizer{DurationResult: 96.5, ExtractErr: map[int]error{0: boom}}
	backend := &sttmock.Provider{Default: "x"}
	p := New(norm, backend, WithScratchDir(t.TempDir()))

	res, err := p.Run(context.Background(), Submission{Path: source(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(res.Segments))
	}
	if !errors.Is(res.Segments[0].Err, boom) {
		t.Errorf("segment 0 err = %v, want %v", res.Segments[0].Err, boom)
	}
	if len(backend.Calls()) != 2 {
		t.Errorf("backend called %d times, want 2", len(backend.Calls()))
	}
	if res.Text != "x x" {
		t.Errorf("Text = %q, want %q", res.Text, "x x")
	}
}

func TestRun_SourceTooLarge(t *testing.T) {
	t.Parallel()

	norm := &audiomock.Normalizer{DurationResult: 10}
	p := New(norm, &sttmock.Provider{}, WithScratchDir(t.TempDir()))

	_, err := p.Run(context.Background(), Submission{Path: source(t), Size: DefaultMaxBytes + 1})
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("err = %v, want ErrSourceTooLarge", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.State != StateReceived {
		t.Errorf("err = %#v, want *Error in state received", err)
	}
	if len(norm.NormalizeCalls) != 0 {
		t.Error("normalizer must not run for oversized sources")
	}
}

func TestRun_MeasuresUndeclaredSize(t *testing.T) {
	t.Parallel()

	norm := &audiomock.Normalizer{DurationResult: 10}
	p := New(norm, &sttmock.Provider{}, WithScratchDir(t.TempDir()), WithMaxBytes(4))

	_, err := p.Run(context.Background(), Submission{Path: source(t)})
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("err = %v, want ErrSourceTooLarge", err)
	}
}

func TestRun_FatalStages(t *testing.T) {
	t.Parallel()

	convErr := &audio.ConversionError{Op: "normalize", Path: "voice.ogg", Stderr: "invalid data", Err: errors.New("exit status 1")}
	tests := []struct {
		name      string
		norm      *audiomock.Normalizer
		wantState State
		wantIs    error
	}{
		{
			name:      "normalize fails",
			norm:      &audiomock.Normalizer{NormalizeErr: convErr},
			wantState: StateNormalizing,
			wantIs:    audio.ErrConversion,
		},
		{
			name:      "probe fails",
			norm:      &audiomock.Normalizer{DurationErr: convErr},
			wantState: StateNormalizing,
			wantIs:    audio.ErrConversion,
		},
		{
			name:      "zero duration",
			norm:      &audiomock.Normalizer{DurationResult: 0},
			wantState: StateNormalizing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := &sttmock.Provider{}
			p := New(tt.norm, backend, WithScratchDir(t.TempDir()))

			res, err := p.Run(context.Background(), Submission{Path: source(t)})
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if perr.State != tt.wantState {
				t.Errorf("State = %s, want %s", perr.State, tt.wantState)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(err, %v) = false", tt.wantIs)
			}
			if len(backend.Calls()) != 0 {
				t.Error("backend must not be called after a fatal failure")
			}
		})
	}
}

func TestRun_ObserverAndScratchCleanup(t *testing.T) {
	t.Parallel()

	scratch := t.TempDir()
	var states []State
	var ids []string
	p := New(&audiomock.Normalizer{DurationResult: 60}, &sttmock.Provider{Default: "ok"},
		WithScratchDir(scratch),
		WithObserver(func(id string, s State) {
			ids = append(ids, id)
			states = append(states, s)
		}),
	)

	res, err := p.Run(context.Background(), Submission{Path: source(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []State{StateReceived, StateNormalizing, StateSplitting, StateTranscribing, StateMerging, StateDone}
	if !slices.Equal(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	for _, id := range ids {
		if id != res.ID {
			t.Errorf("observer id %q != result id %q", id, res.ID)
		}
	}
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not cleaned: %v", entries)
	}
}

func TestRun_Archive(t *testing.T) {
	t.Parallel()

	archive := t.TempDir()
	norm := writingNormalizer{&audiomock.Normalizer{DurationResult: 5}}
	p := New(norm, &sttmock.Provider{Default: "salom dunyo"},
		WithScratchDir(t.TempDir()),
		WithArchiveDir(archive),
	)

	res, err := p.Run(context.Background(), Submission{Path: source(t)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ArchivePath != filepath.Join(archive, res.ID) {
		t.Fatalf("ArchivePath = %q", res.ArchivePath)
	}
	text, err := os.ReadFile(filepath.Join(res.ArchivePath, "transcript.txt"))
	if err != nil || string(text) != "salom dunyo" {
		t.Errorf("transcript = %q, %v", text, err)
	}
	if _, err := os.Stat(filepath.Join(res.ArchivePath, "normalized.wav")); err != nil {
		t.Errorf("archived waveform missing: %v", err)
	}
}

func TestRun_LanguageHint(t *testing.T) {
	t.Parallel()

	backend := &sttmock.Provider{Default: "x"}
	p := New(&audiomock.Normalizer{DurationResult: 5}, backend, WithScratchDir(t.TempDir()), WithLanguage("uz"))

	if _, err := p.Run(context.Background(), Submission{Path: source(t)}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), Submission{Path: source(t), Language: "en"}); err != nil {
		t.Fatal(err)
	}
	calls := backend.Calls()
	if calls[0].Language != "uz" || calls[1].Language != "en" {
		t.Errorf("languages = %q, %q", calls[0].Language, calls[1].Language)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	backend := &sttmock.Provider{TranscribeFunc: func(context.Context, stt.Request) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	p := New(&audiomock.Normalizer{DurationResult: 100}, backend, WithScratchDir(t.TempDir()))

	_, err := p.Run(ctx, Submission{Path: source(t)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	got := Merge([]SegmentResult{
		{Index: 0, Text: "a"},
		{Index: 1, Err: errors.New("x")},
		{Index: 2},
		{Index: 3, Text: "b"},
	})
	if got != "a b" {
		t.Errorf("Merge = %q, want %q", got, "a b")
	}
	if Merge(nil) != "" {
		t.Error("Merge(nil) should be empty")
	}
}
