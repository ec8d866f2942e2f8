// Package config provides the configuration schema, loader, and provider
// registry for the Beat meeting facilitator.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/agenda"
)

// LogLevel controls log verbosity for the facilitator process.
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

// LogFormat selects the root slog handler.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogText || f == LogJSON
}

// TimeReplyMode selects how the facilitator answers "how much time is left"
// questions.
type TimeReplyMode string

const (
	// TimeRepliesDeterministic answers from the agenda state machine alone,
	// with no model call. This is the default.
	TimeRepliesDeterministic TimeReplyMode = "deterministic"

	// TimeRepliesFreeform routes time questions through the conversational
	// model like any other question.
	TimeRepliesFreeform TimeReplyMode = "freeform"
)

// IsValid reports whether m is a recognised time reply mode.
func (m TimeReplyMode) IsValid() bool {
	return m == TimeRepliesDeterministic || m == TimeRepliesFreeform
}

// Duration is a time.Duration that decodes from YAML strings such as "30s",
// "5m" or "1h30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\"")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration for the facilitator. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Bot       BotConfig       `yaml:"bot"`
	Meeting   MeetingConfig   `yaml:"meeting"`
	Providers ProvidersConfig `yaml:"providers"`
	Memory    MemoryConfig    `yaml:"memory"`
}

// ServerConfig holds the operational HTTP endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g. ":9090"). Empty disables the operational endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Empty means info.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects the slog handler. Empty means text.
	LogFormat LogFormat `yaml:"log_format"`

	// ShutdownGrace bounds the drain on SIGINT/SIGTERM. Zero means 30s.
	ShutdownGrace Duration `yaml:"shutdown_grace"`
}

// DiscordConfig holds the room transport settings. The voice channel the
// facilitator joins is named per meeting in [MeetingConfig].
type DiscordConfig struct {
	// Token is the bot token. Usually supplied as ${DISCORD_BOT_TOKEN}.
	Token string `yaml:"token"`

	// GuildID is the guild hosting the meeting channels.
	GuildID string `yaml:"guild_id"`

	// AgendaChannelID is the text channel carrying agenda state snapshots
	// and control payloads. Empty disables the agenda data topic.
	AgendaChannelID string `yaml:"agenda_channel_id"`

	// ChatChannelID is the text channel bridged to the chat data topic.
	// Empty disables chat mentions and typed replies.
	ChatChannelID string `yaml:"chat_channel_id"`
}

// BotConfig describes the facilitator persona.
type BotConfig struct {
	// Name is the facilitator's spoken name. Empty means "Beat".
	Name string `yaml:"name"`

	// Aliases are additional names accepted by address detection, typically
	// common recogniser spellings of Name.
	Aliases []string `yaml:"aliases"`

	// Language is the recognition language hint (e.g. "en-US"). Empty uses
	// the provider default.
	Language string `yaml:"language"`

	// Voice configures speech synthesis.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies the synthesis voice.
type VoiceConfig struct {
	// Provider is the TTS provider name the voice belongs to. When set and
	// different from providers.tts.name, [Validate] warns.
	Provider string `yaml:"provider"`

	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means
	// provider default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// MeetingConfig holds the meeting to run and the facilitation defaults
// applied when the room metadata does not override them.
type MeetingConfig struct {
	// RoomID is the voice channel to join.
	RoomID string `yaml:"room_id"`

	// MetadataFile is the path to the meeting brief JSON (title, agenda,
	// style, pre-ordered documents).
	MetadataFile string `yaml:"metadata_file"`

	// Style is the default facilitation style when the metadata names none.
	Style agenda.Style `yaml:"style"`

	// TimeReplies selects deterministic or freeform time answers. Empty
	// means deterministic.
	TimeReplies TimeReplyMode `yaml:"time_replies"`

	// MonitorInterval is the facilitation polling period. Zero keeps the
	// engine default.
	MonitorInterval Duration `yaml:"monitor_interval"`

	// Heartbeat is the maximum age of the published agenda snapshot. Zero
	// keeps the engine default.
	Heartbeat Duration `yaml:"heartbeat"`

	// WarningRatio is the fraction of an item's allocation at which the
	// time warning fires, in (0, 1]. Zero keeps the engine default.
	WarningRatio float64 `yaml:"warning_ratio"`

	// OverrideGrace is the extension granted by "keep going". Zero keeps
	// the engine default.
	OverrideGrace Duration `yaml:"override_grace"`

	// SilenceWindow is how long "please be quiet" suppresses interventions.
	// Zero keeps the engine default.
	SilenceWindow Duration `yaml:"silence_window"`

	// InterventionCooldown is the minimum spacing between unsolicited
	// interventions. Zero keeps the engine default.
	InterventionCooldown Duration `yaml:"intervention_cooldown"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named factory registered in the
// [Registry].
type ProvidersConfig struct {
	// FastLLM is the low-latency model for tangent assessment and item
	// notes.
	FastLLM ProviderEntry `yaml:"llm_fast"`

	// LargeLLM is the conversational model for freeform replies and custom
	// document drafts.
	LargeLLM ProviderEntry `yaml:"llm_large"`

	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	Embeddings ProviderEntry `yaml:"embeddings"`
	VAD        ProviderEntry `yaml:"vad"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field selects the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "openai",
	// "deepgram", "energy").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider, if it needs one. Usually
	// supplied as ${SOME_API_KEY}.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g. "gpt-4o",
	// "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails, each behind
	// its own circuit breaker. The VAD stage runs locally and ignores
	// fallbacks.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// MemoryConfig holds settings for the meeting archive and semantic memory.
type MemoryConfig struct {
	// PostgresDSN is the connection string for the document sink, utterance
	// archive and pgvector index. Empty disables the archive and semantic
	// memory; documents are then written to DocumentsDir instead.
	PostgresDSN string `yaml:"postgres_dsn"`

	// DocumentsDir receives the assembled documents as Markdown files when
	// PostgresDSN is empty. Empty means "./documents".
	DocumentsDir string `yaml:"documents_dir"`

	// EmbeddingDimensions is the vector width of the semantic index column.
	// Must match the configured embeddings model. Zero means 1536.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}
