// Command reelwright is the main entry point for the Reelwright content bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/reelwright/internal/app"
	"github.com/MrWong99/reelwright/internal/avatar"
	"github.com/MrWong99/reelwright/internal/config"
	discordbot "github.com/MrWong99/reelwright/internal/discord"
	"github.com/MrWong99/reelwright/internal/health"
	"github.com/MrWong99/reelwright/internal/observe"
	"github.com/MrWong99/reelwright/internal/resilience"
	"github.com/MrWong99/reelwright/pkg/audio"
	"github.com/MrWong99/reelwright/pkg/provider/llm"
	"github.com/MrWong99/reelwright/pkg/provider/llm/anyllm"
	"github.com/MrWong99/reelwright/pkg/provider/llm/openai"
	"github.com/MrWong99/reelwright/pkg/provider/stt"
	"github.com/MrWong99/reelwright/pkg/provider/stt/deepgram"
	"github.com/MrWong99/reelwright/pkg/provider/stt/httpstt"
	"github.com/MrWong99/reelwright/pkg/provider/stt/whisper"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "reelwright: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "reelwright: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(&level))

	slog.Info("reelwright starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.Setup(ctx, observe.ProviderConfig{
		ServiceName:    "reelwright",
		ServiceVersion: version,
		Global:         true,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := tel.Metrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(discordbot.Config{
		Token:         cfg.Discord.Token,
		GuildID:       cfg.Discord.GuildID,
		MaxAudioBytes: cfg.Media.MaxSourceBytes,
		ScratchDir:    cfg.Media.ScratchDir,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}

	printStartupSummary(cfg, providers)

	application, err := app.New(ctx, cfg, providers, bot, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── HTTP server: metrics and health probes ────────────────────────────────
	mux := http.NewServeMux()
	mux.Handle("/metrics", tel.Handler())
	health.New(readinessChecks(cfg, application, providers)...).Register(mux)
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
			stop()
		}
	}()

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_ *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("config sections changed, restart to apply", "sections", d.RestartRequired)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	}

	go func() {
		if err := bot.Run(ctx, application.Engine()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("discord bot error", "err", err)
			stop()
		}
	}()

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if watcher != nil {
		watcher.Stop()
	}
	// The bot goes first so no new inputs reach the engine.
	if err := bot.Close(); err != nil {
		slog.Warn("discord bot close error", "err", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}

	code := 0
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// anthropic, gemini, deepseek, mistral, groq, llamacpp and llamafile go
	// through any-llm with an optional APIKey and BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("http", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []httpstt.Option
		if h := optString(entry.Options, "api_key_header"); h != "" {
			opts = append(opts, httpstt.WithAPIKeyHeader(h))
		}
		if f := optString(entry.Options, "language_field"); f != "" {
			opts = append(opts, httpstt.WithLanguageField(f))
		}
		return httpstt.New(entry.BaseURL, entry.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if t := optFloat(entry.Options, "temperature"); t > 0 {
			opts = append(opts, whisper.WithTemperature(t))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := optFloat(entry.Options, "concurrency"); n > 0 {
			opts = append(opts, whisper.WithNativeConcurrency(int(n)))
		}
		if n := optFloat(entry.Options, "threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	for _, kind := range []string{"llm", "stt"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// breakerConfig returns the circuit breaker settings shared by every
// fallback group.
func breakerConfig(metrics *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			IsFailure: resilience.NotCancellation,
			OnStateChange: func(name string, to resilience.State) {
				metrics.RecordBreakerTransition(name, to.String())
			},
		},
	}
}

// buildProviders instantiates the providers named in cfg and wraps each
// kind in a fallback group.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*app.Providers, error) {
	ps := &app.Providers{}
	fc := breakerConfig(metrics)

	primaryLLM, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	llmGroup := resilience.NewLLMFallback(primaryLLM, cfg.Providers.LLM.Name, fc)
	if name := cfg.Providers.LLMFallback.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLMFallback)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %q: %w", name, err)
		}
		llmGroup.AddFallback(name, p)
	}
	ps.LLM = llmGroup
	slog.Info("provider created", "kind", "llm", "chain", llmGroup.Names())

	primarySTT, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	sttGroup := resilience.NewSTTFallback(primarySTT, cfg.Providers.STT.Name, fc)
	if name := cfg.Providers.STTFallback.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STTFallback)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", name, err)
		}
		sttGroup.AddFallback(name, p)
	}
	ps.STT = sttGroup
	slog.Info("provider created", "kind", "stt", "chain", sttGroup.Names())

	n, err := buildNormalizer(cfg.Media, fc)
	if err != nil {
		return nil, err
	}
	ps.Normalizer = n

	if cfg.Avatar.APIKey != "" {
		var opts []avatar.Option
		if cfg.Avatar.BaseURL != "" {
			opts = append(opts, avatar.WithBaseURL(cfg.Avatar.BaseURL))
		}
		if cfg.Avatar.PollInterval > 0 {
			opts = append(opts, avatar.WithPollInterval(cfg.Avatar.PollInterval))
		}
		if cfg.Avatar.MaxWait > 0 {
			opts = append(opts, avatar.WithMaxWait(cfg.Avatar.MaxWait))
		}
		client, err := avatar.New(cfg.Avatar.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("create avatar client: %w", err)
		}
		ps.Renderer = client
		ps.Catalog = avatar.NewCatalog(cfg.Avatar.Avatars, cfg.Avatar.Voices)
		slog.Info("provider created", "kind", "avatar", "base_url", cfg.Avatar.BaseURL)
	} else {
		slog.Info("avatar rendering disabled, no api key configured")
	}
	return ps, nil
}

// buildNormalizer selects the media backend. In auto mode ffmpeg is
// preferred when its binaries are on PATH, with the native decoder behind it.
func buildNormalizer(mc config.MediaConfig, fc resilience.FallbackConfig) (audio.Normalizer, error) {
	var ffOpts []audio.FFmpegOption
	if mc.FFmpegPath != "" {
		ffOpts = append(ffOpts, audio.WithFFmpegPath(mc.FFmpegPath))
	}
	if mc.FFprobePath != "" {
		ffOpts = append(ffOpts, audio.WithFFprobePath(mc.FFprobePath))
	}
	ff := audio.NewFFmpeg(ffOpts...)

	switch mc.Backend {
	case config.MediaFFmpeg:
		if err := ff.Available(); err != nil {
			return nil, fmt.Errorf("media backend ffmpeg: %w", err)
		}
		return ff, nil
	case config.MediaNative:
		return audio.NewNative(), nil
	default:
		if err := ff.Available(); err != nil {
			slog.Warn("ffmpeg not available, using native decoder only", "err", err)
			return audio.NewNative(), nil
		}
		group := resilience.NewNormalizerFallback(ff, "ffmpeg", fc)
		group.AddFallback("native", audio.NewNative())
		return group, nil
	}
}

// readinessChecks returns the application checks plus one check per
// provider chain, which fails once every backend's circuit is open. A
// binary check is added when ffmpeg is the only media backend.
func readinessChecks(cfg *config.Config, a *app.App, ps *app.Providers) []health.Checker {
	checks := slices.Clone(a.Checkers())
	chains := []struct {
		name     string
		provider any
		optional bool
	}{
		{"llm", ps.LLM, false},
		{"stt", ps.STT, false},
		// Text conversations keep working without a media backend.
		{"media", ps.Normalizer, true},
	}
	for _, c := range chains {
		if r, ok := c.provider.(interface{ Ready(context.Context) error }); ok {
			checks = append(checks, health.Checker{Name: c.name, Check: r.Ready, Optional: c.optional})
		}
	}
	if cfg.Media.Backend == config.MediaFFmpeg {
		ff := audio.NewFFmpeg(audio.WithFFmpegPath(cfg.Media.FFmpegPath), audio.WithFFprobePath(cfg.Media.FFprobePath))
		checks = append(checks, health.Checker{
			Name:  "ffmpeg",
			Check: func(context.Context) error { return ff.Available() },
		})
	}
	return checks
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, ps *app.Providers) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       Reelwright startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("LLM", providerLabel(cfg.Providers.LLM))
	printRow("LLM fallback", providerLabel(cfg.Providers.LLMFallback))
	printRow("STT", providerLabel(cfg.Providers.STT))
	printRow("STT fallback", providerLabel(cfg.Providers.STTFallback))
	printRow("Media", string(cfg.Media.Backend))
	printRow("Sessions", string(cfg.Sessions.Backend))
	printRow("Language", cfg.Content.Language)
	if ps.Renderer != nil {
		printRow("Avatars", fmt.Sprintf("%d configured", len(ps.Catalog.Avatars())))
	} else {
		printRow("Avatars", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	default:
		return e.Name
	}
}

func printRow(kind, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:18]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// optFloat reads a numeric option; YAML integers count too.
func optFloat(opts map[string]any, key string) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
