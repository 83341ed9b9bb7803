package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/reelwright/internal/observe"
	"github.com/MrWong99/reelwright/pkg/audio"
	"github.com/MrWong99/reelwright/pkg/provider/stt"
)

const (
	// DefaultMaxBytes is the default submission size limit (20 MiB).
	DefaultMaxBytes int64 = 20 << 20

	// DefaultSegmentTimeout bounds one transcription request.
	DefaultSegmentTimeout = 2 * time.Minute
)

// Segment outcome labels used for metrics and logs.
const (
	outcomeOK            = "ok"
	outcomeEmpty         = "empty"
	outcomeFailed        = "failed"
	outcomeExtractFailed = "extract_failed"
)

// Option is a functional option for [New].
type Option func(*Pipeline)

// WithMaxBytes sets the submission size limit. Non-positive values disable
// the guard.
func WithMaxBytes(n int64) Option {
	return func(p *Pipeline) { p.maxBytes = n }
}

// WithConcurrency sets how many segments are transcribed in parallel. The
// default of 1 transcribes strictly in order.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithSegmentDuration sets the longest segment sent to the backend.
func WithSegmentDuration(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.segment = d
		}
	}
}

// WithSegmentTimeout bounds each transcription request.
func WithSegmentTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.segmentTimeout = d
		}
	}
}

// WithScratchDir sets the base directory for per-run scratch space. The
// default is [os.TempDir].
func WithScratchDir(dir string) Option {
	return func(p *Pipeline) { p.scratchDir = dir }
}

// WithArchiveDir enables archiving: the normalized waveform and the merged
// transcript of every run are copied into <dir>/<run id>/.
func WithArchiveDir(dir string) Option {
	return func(p *Pipeline) { p.archiveDir = dir }
}

// WithLanguage sets the default language hint passed to the backend.
func WithLanguage(lang string) Option {
	return func(p *Pipeline) { p.language = lang }
}

// WithObserver registers a state-change callback.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithMetrics sets the metrics sink. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline transcribes recordings. It holds no per-run state and is safe for
// concurrent use; every run gets its own scratch directory.
type Pipeline struct {
	normalizer     audio.Normalizer
	stt            stt.Provider
	maxBytes       int64
	concurrency    int
	segment        time.Duration
	segmentTimeout time.Duration
	scratchDir     string
	archiveDir     string
	language       string
	observer       Observer
	metrics        *observe.Metrics
}

// New returns a Pipeline that converts through n and transcribes through p.
func New(n audio.Normalizer, p stt.Provider, opts ...Option) *Pipeline {
	pl := &Pipeline{
		normalizer:     n,
		stt:            p,
		maxBytes:       DefaultMaxBytes,
		concurrency:    1,
		segment:        audio.DefaultSegmentDuration,
		segmentTimeout: DefaultSegmentTimeout,
	}
	for _, o := range opts {
		o(pl)
	}
	if pl.metrics == nil {
		pl.metrics = observe.DefaultMetrics()
	}
	return pl
}

// MaxBytes returns the submission size limit; zero or less means unlimited.
func (p *Pipeline) MaxBytes() int64 { return p.maxBytes }

// Run transcribes sub. A non-nil error is either an *[Error] (fatal stage
// failure, matching [ErrSourceTooLarge] or [audio.ErrConversion] through
// errors.Is) or the context error. Segment failures are reported in the
// result, never as an error.
func (p *Pipeline) Run(ctx context.Context, sub Submission) (res *Result, err error) {
	id := uuid.NewString()
	ctx, stage := observe.StartStage(ctx, "transcribe.run", p.metrics.PipelineDuration)
	stage.Span().SetAttributes(observe.Attr("submission.id", id))
	log := observe.Logger(ctx).With("submission", id)
	p.metrics.ActiveJobs.Add(ctx, 1)
	defer func() {
		p.metrics.ActiveJobs.Add(ctx, -1)
		stage.End(ctx, err)
		switch {
		case errors.Is(err, ErrSourceTooLarge):
			p.metrics.RecordSubmission(ctx, "too_large")
		case err != nil:
			p.metrics.RecordSubmission(ctx, "failed")
		default:
			p.metrics.RecordSubmission(ctx, res.Status.String())
		}
	}()

	state := StateReceived
	enter := func(s State) {
		state = s
		log.Debug("transcribe: state", "state", s)
		if p.observer != nil {
			p.observer(id, s)
		}
	}
	fail := func(cause error) error {
		failed := state
		enter(StateFailed)
		log.Warn("transcribe: run failed", "state", failed, "err", cause)
		return &Error{State: failed, Err: cause}
	}
	enter(StateReceived)

	size := sub.Size
	if size <= 0 {
		fi, statErr := os.Stat(sub.Path)
		if statErr != nil {
			return nil, fail(statErr)
		}
		size = fi.Size()
	}
	if p.maxBytes > 0 && size > p.maxBytes {
		return nil, fail(fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrSourceTooLarge, size, p.maxBytes))
	}

	dir := filepath.Join(p.scratchBase(), id)
	if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
		return nil, fail(mkErr)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn("transcribe: remove scratch dir", "dir", dir, "err", rmErr)
		}
	}()

	enter(StateNormalizing)
	wav := filepath.Join(dir, "normalized.wav")
	total, normErr := p.normalize(ctx, sub.Path, wav)
	if normErr != nil {
		return nil, fail(normErr)
	}

	enter(StateSplitting)
	segs, splitErr := audio.NewSplitter(p.normalizer, p.segment).Split(ctx, wav, dir, total)
	if segs == nil {
		return nil, fail(splitErr)
	}
	extractErrs := segmentErrors(splitErr)

	enter(StateTranscribing)
	results := p.transcribeAll(ctx, segs, extractErrs, p.languageFor(sub))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fail(ctxErr)
	}

	enter(StateMerging)
	res = &Result{
		ID:       id,
		Text:     Merge(results),
		Segments: results,
		Duration: total,
	}
	if res.Text == "" {
		res.Status = StatusEmpty
	}
	if p.archiveDir != "" {
		res.ArchivePath = p.archive(log, id, wav, res.Text)
	}

	enter(StateDone)
	log.Info("transcribe: run done",
		"status", res.Status,
		"segments", len(results),
		"failed", res.Failed(),
		"duration", total,
	)
	return res, nil
}

func (p *Pipeline) normalize(ctx context.Context, src, wav string) (time.Duration, error) {
	ctx, stage := observe.StartStage(ctx, "transcribe.normalize", p.metrics.NormalizeDuration)
	var err error
	defer func() { stage.End(ctx, err) }()

	if err = p.normalizer.Normalize(ctx, src, wav); err != nil {
		return 0, err
	}
	var secs float64
	if secs, err = p.normalizer.Duration(ctx, wav); err != nil {
		return 0, err
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		err = fmt.Errorf("invalid duration %v s", secs)
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// transcribeAll runs every segment through the backend with bounded
// parallelism. Results are slotted by index so completion order does not
// affect the merge.
func (p *Pipeline) transcribeAll(ctx context.Context, segs []audio.Segment, extractErrs map[int]error, lang string) []SegmentResult {
	results := make([]SegmentResult, len(segs))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, seg := range segs {
		results[i] = SegmentResult{Index: seg.Index, Start: seg.Start, Duration: seg.Duration}
		if seg.Path == "" {
			err := extractErrs[seg.Index]
			if err == nil {
				err = fmt.Errorf("segment %d was not extracted", seg.Index)
			}
			results[i].Err = err
			p.metrics.RecordSegment(ctx, outcomeExtractFailed)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].Err = ctx.Err()
				return nil
			}
			results[i].Text, results[i].Err = p.transcribeOne(ctx, seg, lang)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) transcribeOne(ctx context.Context, seg audio.Segment, lang string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.segmentTimeout)
	defer cancel()

	ctx, stage := observe.StartStage(ctx, "transcribe.segment", p.metrics.STTDuration)
	stage.Span().SetAttributes(observe.Attr("segment.index", fmt.Sprint(seg.Index)))

	text, err := p.stt.Transcribe(ctx, stt.Request{
		Path:       seg.Path,
		SampleRate: audio.TargetSampleRate,
		Channels:   audio.TargetChannels,
		Language:   lang,
	})
	stage.End(ctx, err)

	text = strings.TrimSpace(text)
	switch {
	case err != nil:
		p.metrics.RecordSegment(ctx, outcomeFailed)
		observe.Logger(ctx).Warn("transcribe: segment failed", "index", seg.Index, "start", seg.Start, "err", err)
		return "", err
	case text == "":
		p.metrics.RecordSegment(ctx, outcomeEmpty)
	default:
		p.metrics.RecordSegment(ctx, outcomeOK)
	}
	return text, nil
}

func (p *Pipeline) languageFor(sub Submission) string {
	if sub.Language != "" {
		return sub.Language
	}
	return p.language
}

func (p *Pipeline) scratchBase() string {
	if p.scratchDir != "" {
		return p.scratchDir
	}
	return os.TempDir()
}

// archive copies the normalized waveform and the transcript into the archive
// directory. Failures are logged; archiving never fails a run.
func (p *Pipeline) archive(log *slog.Logger, id, wav, text string) string {
	dest := filepath.Join(p.archiveDir, id)
	err := func() error {
		if err := os.MkdirAll(dest, 0o750); err != nil {
			return err
		}
		if err := copyFile(wav, filepath.Join(dest, "normalized.wav")); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dest, "transcript.txt"), []byte(text), 0o640)
	}()
	if err != nil {
		log.Warn("transcribe: archive failed", "dir", dest, "err", err)
		return ""
	}
	return dest
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// segmentErrors indexes the *audio.SegmentError values joined in err.
func segmentErrors(err error) map[int]error {
	if err == nil {
		return nil
	}
	out := make(map[int]error)
	var walk func(error)
	walk = func(e error) {
		var se *audio.SegmentError
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		if errors.As(e, &se) {
			out[se.Index] = se
		}
	}
	walk(err)
	return out
}
