package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/reelwright/internal/delivery"
	"github.com/MrWong99/reelwright/internal/observe"
	"github.com/MrWong99/reelwright/internal/transcribe"
	"github.com/MrWong99/reelwright/pkg/provider/llm"
)

// Defaults for [EngineConfig].
const (
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 4000
	DefaultGenerateTimeout = 3 * time.Minute
	DefaultRenderTimeout   = 6 * time.Minute
)

// Store persists sessions between inputs.
type Store interface {
	// Get returns the session for id, or (nil, nil) when there is none.
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Messenger sends outbound messages to a conversation.
type Messenger interface {
	Send(ctx context.Context, conversationID, text string) error
	SendChoices(ctx context.Context, conversationID, text string, choices []Choice) error
}

// Transcriber turns a recording into text.
type Transcriber interface {
	Run(ctx context.Context, sub transcribe.Submission) (*transcribe.Result, error)
}

// Renderer produces an avatar video and returns its download URL.
type Renderer interface {
	Render(ctx context.Context, script, avatarID, voiceID string) (string, error)
}

// EngineConfig holds the collaborators of an [Engine].
type EngineConfig struct {
	Machine   *Machine
	LLM       llm.Provider
	Messenger Messenger
	Store     Store

	// Transcriber is required for the voice entry mode and follow-up
	// recordings. Without it every recording fails.
	Transcriber Transcriber

	// Renderer is optional; without it renders fail.
	Renderer Renderer

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Temperature and MaxTokens are the sampling settings of every
	// generation. Zero selects the defaults.
	Temperature float64
	MaxTokens   int

	// PartLimit is the longest outbound message in runes. Zero selects
	// [delivery.DefaultLimit].
	PartLimit int

	// SendDelay is the pause between parts of one delivery. Zero selects
	// [delivery.DefaultDelay]; a negative value disables pacing.
	SendDelay time.Duration

	GenerateTimeout time.Duration
	RenderTimeout   time.Duration
}

// Engine runs conversations. Inputs for one conversation are handled one at
// a time in arrival order; different conversations proceed in parallel.
type Engine struct {
	cfg     EngineConfig
	chunker delivery.Chunker
	locks   keyedMutex
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	var errs []error
	if cfg.Machine == nil {
		errs = append(errs, errors.New("machine is required"))
	}
	if cfg.LLM == nil {
		errs = append(errs, errors.New("llm provider is required"))
	}
	if cfg.Messenger == nil {
		errs = append(errs, errors.New("messenger is required"))
	}
	if cfg.Store == nil {
		errs = append(errs, errors.New("session store is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	switch {
	case cfg.SendDelay == 0:
		cfg.SendDelay = delivery.DefaultDelay
	case cfg.SendDelay < 0:
		cfg.SendDelay = 0
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = DefaultRenderTimeout
	}
	return &Engine{
		cfg: cfg,
		chunker: delivery.Chunker{
			Limit:   cfg.PartLimit,
			Grammar: cfg.Machine.Prompts().Grammar(),
		},
		locks: keyedMutex{m: make(map[string]*refMutex)},
	}, nil
}

// Handle applies in to the conversation id and runs every resulting effect,
// including the follow-up inputs produced by generations, transcriptions
// and renders. It returns only store failures and context cancellation;
// collaborator failures are shown to the user.
func (e *Engine) Handle(ctx context.Context, id string, in Input) error {
	unlock := e.locks.lock(id)
	defer unlock()

	e.cfg.Metrics.ActiveConversations.Add(ctx, 1)
	defer e.cfg.Metrics.ActiveConversations.Add(ctx, -1)

	log := observe.Logger(ctx).With("conversation", id)

	cur, err := e.cfg.Store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("content: load session %s: %w", id, err)
	}
	s := NewSession(id)
	if cur != nil {
		s = *cur
	}

	queue := []Input{in}
	for len(queue) > 0 {
		in, queue = queue[0], queue[1:]

		next, effects := e.cfg.Machine.Transition(s, in)
		if next.Stage != s.Stage {
			log.Info("content: stage changed", "from", s.Stage, "to", next.Stage)
		}
		if err := e.cfg.Store.Put(ctx, &next); err != nil {
			return fmt.Errorf("content: save session %s: %w", id, err)
		}
		s = next

		for _, ef := range effects {
			if err := ctx.Err(); err != nil {
				return err
			}
			if fb, ok := e.run(ctx, log, id, ef); ok {
				queue = append(queue, fb)
			}
		}
	}
	return nil
}

// Session returns the stored session for id, or an idle one.
func (e *Engine) Session(ctx context.Context, id string) (Session, error) {
	s, err := e.cfg.Store.Get(ctx, id)
	if err != nil || s == nil {
		return NewSession(id), err
	}
	return *s, nil
}

// run executes one effect. Effects that talk to a collaborator return the
// input describing its outcome.
func (e *Engine) run(ctx context.Context, log *slog.Logger, id string, ef Effect) (Input, bool) {
	switch ef.Kind {
	case EffectReply:
		if err := e.cfg.Messenger.Send(ctx, id, ef.Text); err != nil {
			log.Warn("content: reply failed", "err", err)
		}
	case EffectChoices:
		if err := e.cfg.Messenger.SendChoices(ctx, id, ef.Text, ef.Choices); err != nil {
			log.Warn("content: choices failed", "err", err)
		}
	case EffectDeliver:
		e.deliver(ctx, log, id, ef)
	case EffectGenerate:
		return e.generate(ctx, log, ef.Generation), true
	case EffectTranscribe:
		return e.transcribe(ctx, log, ef), true
	case EffectRender:
		return e.render(ctx, log, ef.Render), true
	}
	return Input{}, false
}

func (e *Engine) deliver(ctx context.Context, log *slog.Logger, id string, ef Effect) {
	mode := "generic"
	parts := e.chunker.Generic(ef.Text)
	if ef.Structural {
		mode = "structural"
		parts = e.chunker.Structural(ef.Text)
	}
	sender := delivery.SenderFunc(func(ctx context.Context, text string) error {
		err := e.cfg.Messenger.Send(ctx, id, text)
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.cfg.Metrics.RecordDeliveredPart(ctx, mode, status)
		return err
	})
	if err := delivery.Deliver(ctx, sender, parts, e.cfg.SendDelay); err != nil {
		log.Warn("content: delivery incomplete", "parts", len(parts), "err", err)
	}
}

func (e *Engine) generate(ctx context.Context, log *slog.Logger, g Generation) Input {
	kind := string(g.Kind)
	if g.Kind == GenerationRegenerate && g.Kept.All {
		kind = "keep_all"
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.GenerateTimeout)
	defer cancel()
	ctx, stage := observe.StartStage(ctx, "content.generate", e.cfg.Metrics.LLMDuration, observe.Attr("kind", kind))

	resp, err := e.cfg.LLM.Complete(ctx, llm.UserPrompt(g.System, g.Prompt, e.cfg.Temperature, e.cfg.MaxTokens))
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = errors.New("empty completion")
	}
	elapsed := stage.End(ctx, err)

	if err != nil {
		e.cfg.Metrics.RecordGeneration(ctx, kind, "error")
		log.Error("content: generation failed", "kind", kind, "err", err)
		msgs := e.cfg.Machine.Prompts().Messages()
		return Input{Kind: InputGenerated, Outcome: OutcomeFailed, Text: fmt.Sprintf(msgs.LLMError, err)}
	}
	status := "ok"
	if resp.Truncated() {
		status = "truncated"
		log.Warn("content: completion hit the token limit, batch may be incomplete",
			"kind", kind, "max_tokens", e.cfg.MaxTokens)
	}
	e.cfg.Metrics.RecordGeneration(ctx, kind, status)
	log.Info("content: generated batch",
		"kind", kind,
		"kept", g.Kept.String(),
		"tokens", resp.Usage.TotalTokens,
		"elapsed", elapsed,
	)
	return Input{Kind: InputGenerated, Outcome: OutcomeOK, Text: resp.Content}
}

func (e *Engine) transcribe(ctx context.Context, log *slog.Logger, ef Effect) Input {
	in := Input{Kind: InputTranscribed, Purpose: ef.Purpose, Outcome: OutcomeFailed}
	if e.cfg.Transcriber == nil {
		log.Warn("content: recording received but no transcriber is configured")
		return in
	}
	res, err := e.cfg.Transcriber.Run(ctx, transcribe.Submission{
		Path:     ef.Audio.Path,
		Size:     ef.Audio.Size,
		Duration: ef.Audio.Duration,
	})
	switch {
	case errors.Is(err, transcribe.ErrSourceTooLarge):
		in.Outcome = OutcomeTooLarge
	case err != nil:
		log.Warn("content: transcription failed", "err", err)
	case res.Status == transcribe.StatusEmpty:
		in.Outcome = OutcomeEmpty
	default:
		in.Outcome = OutcomeOK
		in.Text = res.Text
	}
	return in
}

func (e *Engine) render(ctx context.Context, log *slog.Logger, r Render) Input {
	in := Input{Kind: InputRendered, Outcome: OutcomeFailed}
	if e.cfg.Renderer == nil {
		log.Warn("content: render requested but no renderer is configured")
		return in
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RenderTimeout)
	defer cancel()
	url, err := e.cfg.Renderer.Render(ctx, r.Script, r.AvatarID, r.VoiceID)
	if err != nil {
		log.Warn("content: render failed", "avatar", r.AvatarID, "err", err)
		return in
	}
	in.Outcome = OutcomeOK
	in.Text = url
	return in
}

// keyedMutex hands out one mutex per key and forgets it once no caller
// holds or waits for it.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	rm, ok := k.m[key]
	if !ok {
		rm = &refMutex{}
		k.m[key] = rm
	}
	rm.refs++
	k.mu.Unlock()

	rm.Lock()
	return func() {
		rm.Unlock()
		k.mu.Lock()
		rm.refs--
		if rm.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
