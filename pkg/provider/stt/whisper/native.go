package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/reelwright/pkg/audio"
	"github.com/MrWong99/reelwright/pkg/provider/stt"
)

var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider runs a ggml model in-process. The model is loaded once and
// shared; every call decodes in a fresh context, and a semaphore bounds how
// many run at a time since each context holds its own buffers.
//
// Building it links libwhisper.a; LIBRARY_PATH and C_INCLUDE_PATH must point
// at a whisper.cpp build.
type NativeProvider struct {
	model    whisperlib.Model
	language string
	threads  uint
	slots    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the fallback language code. Defaults to "auto".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeConcurrency caps simultaneous decodes. Defaults to 1.
func WithNativeConcurrency(n int) NativeOption {
	return func(p *NativeProvider) {
		if n > 0 {
			p.slots = make(chan struct{}, n)
		}
	}
}

// WithNativeThreads sets the CPU threads per decode. Zero keeps the
// library default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative loads the model at modelPath. Call Close to free it.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path is required")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %s: %w", modelPath, err)
	}
	p := &NativeProvider{model: model, language: defaultLanguage, slots: make(chan struct{}, 1)}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close frees the model. Later calls return the first result.
func (p *NativeProvider) Close() error {
	p.closeOnce.Do(func() {
		if p.model != nil {
			p.closeErr = p.model.Close()
		}
	})
	return p.closeErr
}

// Transcribe decodes the segment, converting it to 16 kHz mono first when
// it is not already.
func (p *NativeProvider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	pcm, f, err := audio.ReadWAV(req.Path)
	if err != nil {
		return "", fmt.Errorf("whisper: read segment: %w", err)
	}
	samples := audio.Float32(audio.ToTarget(pcm, f))

	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		return "", fmt.Errorf("whisper: wait for decoder: %w", ctx.Err())
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	return p.decode(samples, lang)
}

func (p *NativeProvider) decode(samples []float32, lang string) (string, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: new context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: language rejected, using model default", "language", lang, "err", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process: %w", err)
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: next segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
