package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"http", "deepgram", "whisper", "whisper-native"},
}

// ValidLanguages lists the locales the content engine ships with.
var ValidLanguages = []string{"uz", "en"}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr     = ":8080"
	DefaultMaxSourceBytes = 20 << 20
	DefaultChunkSeconds   = 48
	DefaultLanguage       = "uz"
	DefaultBatchSize      = 15
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 4000
	DefaultPartLimit      = 4000
	DefaultSendDelay      = 500 * time.Millisecond
	DefaultSessionTTL     = 24 * time.Hour
	DefaultPurgeInterval  = 10 * time.Minute
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// from the environment, fills in defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field that has a default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Media.Backend == "" {
		cfg.Media.Backend = MediaAuto
	}
	if cfg.Media.MaxSourceBytes == 0 {
		cfg.Media.MaxSourceBytes = DefaultMaxSourceBytes
	}
	if cfg.Media.ChunkSeconds == 0 {
		cfg.Media.ChunkSeconds = DefaultChunkSeconds
	}
	if cfg.Media.Concurrency == 0 {
		cfg.Media.Concurrency = 1
	}
	if cfg.Content.Language == "" {
		cfg.Content.Language = DefaultLanguage
	}
	if cfg.Content.BatchSize == 0 {
		cfg.Content.BatchSize = DefaultBatchSize
	}
	if cfg.Content.Temperature == 0 {
		cfg.Content.Temperature = DefaultTemperature
	}
	if cfg.Content.MaxTokens == 0 {
		cfg.Content.MaxTokens = DefaultMaxTokens
	}
	if cfg.Content.PartLimit == 0 {
		cfg.Content.PartLimit = DefaultPartLimit
	}
	if cfg.Content.SendDelay == 0 {
		cfg.Content.SendDelay = DefaultSendDelay
	}
	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = SessionsMemory
	}
	if cfg.Sessions.TTL == 0 {
		cfg.Sessions.TTL = DefaultSessionTTL
	}
	if cfg.Sessions.PurgeInterval == 0 {
		cfg.Sessions.PurgeInterval = DefaultPurgeInterval
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.STT.Name == "http" && cfg.Providers.STT.BaseURL == "" {
		errs = append(errs, errors.New("providers.stt.base_url is required for the http provider"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)

	// Media
	if !cfg.Media.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("media.backend %q is invalid; valid values: auto, ffmpeg, native", cfg.Media.Backend))
	}
	if cfg.Media.MaxSourceBytes < 0 {
		errs = append(errs, fmt.Errorf("media.max_source_bytes %d must not be negative", cfg.Media.MaxSourceBytes))
	}
	if cfg.Media.ChunkSeconds < 1 {
		errs = append(errs, fmt.Errorf("media.chunk_seconds %d must be at least 1", cfg.Media.ChunkSeconds))
	}
	if cfg.Media.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("media.concurrency %d must be at least 1", cfg.Media.Concurrency))
	}

	// Content
	if !slices.Contains(ValidLanguages, strings.ToLower(cfg.Content.Language)) {
		errs = append(errs, fmt.Errorf("content.language %q is invalid; valid values: %s", cfg.Content.Language, strings.Join(ValidLanguages, ", ")))
	}
	if cfg.Content.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("content.batch_size %d must be at least 1", cfg.Content.BatchSize))
	}
	if cfg.Content.Temperature < 0 || cfg.Content.Temperature > 2 {
		errs = append(errs, fmt.Errorf("content.temperature %.2f is out of range [0, 2]", cfg.Content.Temperature))
	}
	if cfg.Content.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("content.max_tokens %d must be at least 1", cfg.Content.MaxTokens))
	}
	if cfg.Content.PartLimit < 1 || cfg.Content.PartLimit > 4096 {
		errs = append(errs, fmt.Errorf("content.part_limit %d is out of range [1, 4096]", cfg.Content.PartLimit))
	}

	// Sessions
	if !cfg.Sessions.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("sessions.backend %q is invalid; valid values: memory, postgres, sqlite", cfg.Sessions.Backend))
	}
	if (cfg.Sessions.Backend == SessionsPostgres || cfg.Sessions.Backend == SessionsSQLite) && cfg.Sessions.DSN == "" {
		errs = append(errs, fmt.Errorf("sessions.dsn is required for the %s backend", cfg.Sessions.Backend))
	}
	if cfg.Sessions.TTL < 0 {
		errs = append(errs, fmt.Errorf("sessions.ttl %s must not be negative", cfg.Sessions.TTL))
	}

	// Avatar
	for name, id := range cfg.Avatar.Avatars {
		if strings.TrimSpace(name) == "" || id == "" {
			errs = append(errs, fmt.Errorf("avatar.avatars: entry %q needs a name and an id", name))
		}
	}
	for name, id := range cfg.Avatar.Voices {
		if strings.TrimSpace(name) == "" || id == "" {
			errs = append(errs, fmt.Errorf("avatar.voices: entry %q needs a name and an id", name))
		}
	}
	if cfg.Avatar.APIKey == "" && (len(cfg.Avatar.Avatars) > 0 || len(cfg.Avatar.Voices) > 0) {
		slog.Warn("avatar catalog is configured but avatar.api_key is empty; video rendering is disabled")
	}

	if cfg.Discord.Token == "" {
		slog.Warn("discord.token is empty; the bot will not connect")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
