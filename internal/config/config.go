// Package config provides the configuration schema, loader, and provider
// registry for the reelwright content bot.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// MediaBackend selects the audio normalizer.
type MediaBackend string

const (
	// MediaAuto uses ffmpeg when it is on the PATH and falls back to the
	// pure-Go decoder otherwise.
	MediaAuto MediaBackend = "auto"

	// MediaFFmpeg shells out to ffmpeg and ffprobe.
	MediaFFmpeg MediaBackend = "ffmpeg"

	// MediaNative decodes WAV and Ogg/Opus in process.
	MediaNative MediaBackend = "native"
)

// IsValid reports whether b is a recognised media backend.
func (b MediaBackend) IsValid() bool {
	switch b {
	case MediaAuto, MediaFFmpeg, MediaNative:
		return true
	}
	return false
}

// SessionBackend selects where conversation state is kept.
type SessionBackend string

const (
	SessionsMemory   SessionBackend = "memory"
	SessionsPostgres SessionBackend = "postgres"
	SessionsSQLite   SessionBackend = "sqlite"
)

// IsValid reports whether b is a recognised session backend.
func (b SessionBackend) IsValid() bool {
	switch b {
	case SessionsMemory, SessionsPostgres, SessionsSQLite:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Providers ProvidersConfig `yaml:"providers"`
	Media     MediaConfig     `yaml:"media"`
	Content   ContentConfig   `yaml:"content"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Avatar    AvatarConfig    `yaml:"avatar"`
}

// ServerConfig holds the metrics/health listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":8080"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It is applied again on hot reload.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the bot credentials.
type DiscordConfig struct {
	// Token is the bot token. Usually supplied as "${DISCORD_TOKEN}".
	Token string `yaml:"token"`

	// GuildID scopes slash command registration to one guild. Empty registers
	// the commands globally.
	GuildID string `yaml:"guild_id"`
}

// ProvidersConfig declares which provider implementation to use for each
// stage. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM         ProviderEntry `yaml:"llm"`
	LLMFallback ProviderEntry `yaml:"llm_fallback"`
	STT         ProviderEntry `yaml:"stt"`
	STTFallback ProviderEntry `yaml:"stt_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "http").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// MediaConfig configures audio normalization and transcription.
type MediaConfig struct {
	Backend     MediaBackend `yaml:"backend"`
	FFmpegPath  string       `yaml:"ffmpeg_path"`
	FFprobePath string       `yaml:"ffprobe_path"`

	// MaxSourceBytes rejects uploads above this size before any work starts.
	MaxSourceBytes int64 `yaml:"max_source_bytes"`

	// ChunkSeconds is the maximum segment duration sent to speech-to-text.
	ChunkSeconds int `yaml:"chunk_seconds"`

	// Concurrency is the number of segments transcribed at once.
	Concurrency int `yaml:"concurrency"`

	// SegmentTimeout bounds one speech-to-text call.
	SegmentTimeout time.Duration `yaml:"segment_timeout"`

	// ScratchDir holds per-job working directories. Defaults to the OS temp dir.
	ScratchDir string `yaml:"scratch_dir"`

	// ArchiveDir, when set, keeps a copy of every normalized recording and
	// its transcript.
	ArchiveDir string `yaml:"archive_dir"`
}

// ContentConfig configures scenario generation and delivery.
type ContentConfig struct {
	// Language selects the prompt and message locale ("uz" or "en").
	Language string `yaml:"language"`

	// BatchSize is the number of scenarios per generation.
	BatchSize int `yaml:"batch_size"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// PartLimit is the maximum number of characters per delivered message.
	PartLimit int `yaml:"part_limit"`

	// SendDelay is the pause between consecutive parts. Negative disables it.
	SendDelay time.Duration `yaml:"send_delay"`

	GenerateTimeout time.Duration `yaml:"generate_timeout"`
}

// SessionsConfig selects the conversation store.
type SessionsConfig struct {
	Backend SessionBackend `yaml:"backend"`

	// DSN is the connection string for the postgres and sqlite backends.
	DSN string `yaml:"dsn"`

	// TTL expires idle conversations. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl"`

	// PurgeInterval is how often expired conversations are removed.
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// AvatarConfig configures the optional avatar video renderer. Rendering is
// offered only when APIKey is set.
type AvatarConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// Avatars maps display names to avatar IDs. Empty selects the built-in
	// public avatars.
	Avatars map[string]string `yaml:"avatars"`

	// Voices maps display names to voice IDs. Empty skips the voice question
	// and uses the service default voice.
	Voices map[string]string `yaml:"voices"`

	PollInterval time.Duration `yaml:"poll_interval"`
	MaxWait      time.Duration `yaml:"max_wait"`
	Timeout      time.Duration `yaml:"timeout"`
}
