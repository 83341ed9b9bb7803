// Package app wires the content bot's subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the transcription
// pipeline, prompt builder, state machine, session store and engine; Run
// keeps background maintenance going; Shutdown tears everything down in
// order.
//
// For testing, inject doubles via functional options (WithSessionStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/reelwright/internal/config"
	"github.com/MrWong99/reelwright/internal/content"
	"github.com/MrWong99/reelwright/internal/health"
	"github.com/MrWong99/reelwright/internal/observe"
	"github.com/MrWong99/reelwright/internal/prompt"
	"github.com/MrWong99/reelwright/internal/sessionstore"
	"github.com/MrWong99/reelwright/internal/transcribe"
	"github.com/MrWong99/reelwright/pkg/audio"
	"github.com/MrWong99/reelwright/pkg/provider/llm"
	"github.com/MrWong99/reelwright/pkg/provider/stt"
)

// Providers holds the external collaborators. LLM, STT and Normalizer are
// required; Renderer and Catalog enable the avatar step when both are set.
// Populated by main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	STT        stt.Provider
	Normalizer audio.Normalizer
	Renderer   content.Renderer
	Catalog    content.Catalog
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	messenger content.Messenger
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	store    content.Store
	purger   sessionstore.Purger
	pipeline *transcribe.Pipeline
	prompts  *prompt.Builder
	machine  *content.Machine
	engine   *content.Engine
	checkers []health.Checker

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSessionStore injects a session store instead of creating one from config.
func WithSessionStore(s content.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The messenger
// delivers every outbound message, typically the Discord bot.
func New(ctx context.Context, cfg *config.Config, providers *Providers, messenger content.Messenger, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil || providers.STT == nil || providers.Normalizer == nil {
		return nil, errors.New("app: llm, stt and normalizer providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		messenger: messenger,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init session store: %w", err)
	}

	a.pipeline = transcribe.New(providers.Normalizer, providers.STT,
		transcribe.WithMaxBytes(cfg.Media.MaxSourceBytes),
		transcribe.WithSegmentDuration(time.Duration(cfg.Media.ChunkSeconds)*time.Second),
		transcribe.WithConcurrency(cfg.Media.Concurrency),
		transcribe.WithSegmentTimeout(cfg.Media.SegmentTimeout),
		transcribe.WithScratchDir(cfg.Media.ScratchDir),
		transcribe.WithArchiveDir(cfg.Media.ArchiveDir),
		transcribe.WithLanguage(cfg.Content.Language),
		transcribe.WithMetrics(a.metrics),
	)

	if err := a.initContent(); err != nil {
		a.runClosers(context.Background())
		return nil, fmt.Errorf("app: init content: %w", err)
	}
	return a, nil
}

// initStore opens the configured session backend.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	sc := a.cfg.Sessions
	switch sc.Backend {
	case config.SessionsPostgres:
		pool, err := pgxpool.New(ctx, sc.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		pg := sessionstore.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return err
		}
		a.store, a.purger = pg, pg
		a.checkers = append(a.checkers, health.Checker{Name: "sessions", Check: pool.Ping})
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

	case config.SessionsSQLite:
		db, err := sessionstore.OpenSQLite(ctx, sc.DSN)
		if err != nil {
			return err
		}
		a.store, a.purger = db, db
		a.checkers = append(a.checkers, health.Checker{Name: "sessions", Check: db.Ping})
		a.closers = append(a.closers, db.Close)

	default:
		memOpts := []sessionstore.MemoryOption{sessionstore.WithTTL(sc.TTL)}
		if sc.PurgeInterval > 0 {
			memOpts = append(memOpts, sessionstore.WithJanitorInterval(sc.PurgeInterval))
		}
		mem := sessionstore.NewMemory(memOpts...)
		a.store = mem
		a.closers = append(a.closers, mem.Close)
	}
	slog.Info("session store ready", "backend", sc.Backend)
	return nil
}

// initContent builds the prompt builder, state machine and engine.
func (a *App) initContent() error {
	cc := a.cfg.Content
	prompts, err := prompt.New(cc.Language, prompt.WithBatchSize(cc.BatchSize))
	if err != nil {
		return err
	}
	a.prompts = prompts

	var machineOpts []content.MachineOption
	if a.providers.Renderer != nil && a.providers.Catalog != nil {
		machineOpts = append(machineOpts, content.WithCatalog(a.providers.Catalog))
	}
	a.machine = content.NewMachine(prompts, machineOpts...)

	engine, err := content.NewEngine(content.EngineConfig{
		Machine:         a.machine,
		LLM:             a.providers.LLM,
		Messenger:       a.messenger,
		Store:           a.store,
		Transcriber:     a.pipeline,
		Renderer:        a.providers.Renderer,
		Metrics:         a.metrics,
		Temperature:     cc.Temperature,
		MaxTokens:       cc.MaxTokens,
		PartLimit:       cc.PartLimit,
		SendDelay:       cc.SendDelay,
		GenerateTimeout: cc.GenerateTimeout,
		RenderTimeout:   a.cfg.Avatar.Timeout,
	})
	if err != nil {
		return err
	}
	a.engine = engine
	return nil
}

// Engine returns the conversation engine inputs are fed to.
func (a *App) Engine() *content.Engine { return a.engine }

// Pipeline returns the transcription pipeline.
func (a *App) Pipeline() *transcribe.Pipeline { return a.pipeline }

// Checkers returns readiness checks for the subsystems that can become
// unreachable.
func (a *App) Checkers() []health.Checker { return a.checkers }

// Run keeps background maintenance going and blocks until ctx is cancelled.
// Database-backed sessions are purged after the configured TTL; the memory
// store expires sessions itself.
func (a *App) Run(ctx context.Context) error {
	if a.purger != nil {
		go sessionstore.RunPurger(ctx, a.purger, a.cfg.Sessions.TTL, a.cfg.Sessions.PurgeInterval)
	}
	<-ctx.Done()
	return ctx.Err()
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		shutdownErr = a.runClosers(ctx)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) runClosers(ctx context.Context) error {
	for i, closer := range a.closers {
		select {
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
			return ctx.Err()
		default:
		}
		if err := closer(); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	return nil
}
