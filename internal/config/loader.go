package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":        {"deepgram"},
	"tts":        {"elevenlabs", "coqui"},
	"embeddings": {"openai", "ollama"},
	"vad":        {"energy"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// ${VAR} references are expanded from the environment before parsing, so
// secrets never need to live in the file. Unknown YAML keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	data = expandEnv(data)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envPattern matches ${VAR} and ${VAR:-default}. Bare $VAR is left alone so
// YAML containing literal dollar signs survives expansion.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnv substitutes ${VAR} references in the raw YAML with environment
// values. An unset variable expands to its ${VAR:-default} fallback, or to
// the empty string when no fallback is given.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		groups := envPattern.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(v)
		}
		return groups[2]
	})
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found; recoverable oddities
// are logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.ShutdownGrace < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_grace %s is negative", cfg.Server.ShutdownGrace.Duration()))
	}

	// Bot
	if sf := cfg.Bot.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("bot.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}
	if vp := cfg.Bot.Voice.Provider; vp != "" && cfg.Providers.TTS.Name != "" && vp != cfg.Providers.TTS.Name {
		slog.Warn("bot voice provider does not match the configured TTS provider",
			"voice_provider", vp,
			"tts_provider", cfg.Providers.TTS.Name,
		)
	}

	// Meeting
	if st := cfg.Meeting.Style; st != "" && !st.IsValid() {
		errs = append(errs, fmt.Errorf("meeting.style %q is invalid; valid values: gentle, moderate, chatting", st))
	}
	if tr := cfg.Meeting.TimeReplies; tr != "" && !tr.IsValid() {
		errs = append(errs, fmt.Errorf("meeting.time_replies %q is invalid; valid values: deterministic, freeform", tr))
	}
	if wr := cfg.Meeting.WarningRatio; wr != 0 && (wr <= 0 || wr > 1) {
		errs = append(errs, fmt.Errorf("meeting.warning_ratio %.2f is out of range (0, 1]", wr))
	}
	for _, d := range []struct {
		name  string
		value Duration
	}{
		{"meeting.monitor_interval", cfg.Meeting.MonitorInterval},
		{"meeting.heartbeat", cfg.Meeting.Heartbeat},
		{"meeting.override_grace", cfg.Meeting.OverrideGrace},
		{"meeting.silence_window", cfg.Meeting.SilenceWindow},
		{"meeting.intervention_cooldown", cfg.Meeting.InterventionCooldown},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s %s is negative", d.name, d.value.Duration()))
		}
	}

	// Required pipeline stages. A meeting cannot run without a fast model,
	// a conversational model, recognition and synthesis.
	if cfg.Providers.FastLLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fast is required to run a meeting"))
	}
	if cfg.Providers.LargeLLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_large is required to run a meeting"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt is required to run a meeting"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts is required to run a meeting"))
	}

	// Provider name validation — warn for unknown names.
	validateProviderEntry("llm", cfg.Providers.FastLLM)
	validateProviderEntry("llm", cfg.Providers.LargeLLM)
	validateProviderEntry("stt", cfg.Providers.STT)
	validateProviderEntry("tts", cfg.Providers.TTS)
	validateProviderEntry("embeddings", cfg.Providers.Embeddings)
	validateProviderEntry("vad", cfg.Providers.VAD)

	// Memory
	if cfg.Memory.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("memory.embedding_dimensions %d is negative", cfg.Memory.EmbeddingDimensions))
	}
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; the meeting archive and semantic memory are disabled, documents go to the local directory")
	} else if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("memory.postgres_dsn is set but providers.embeddings is not; semantic meeting memory is disabled")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions == 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
	}

	// Discord
	if cfg.Discord.AgendaChannelID == "" {
		slog.Warn("discord.agenda_channel_id is empty; agenda snapshots and UI control payloads are disabled")
	}
	if cfg.Discord.ChatChannelID == "" {
		slog.Warn("discord.chat_channel_id is empty; chat mentions and typed replies are disabled")
	}

	return errors.Join(errs...)
}

// validateProviderEntry warns when an entry (or one of its fallbacks) names
// a provider not in the [ValidProviderNames] list for its kind.
func validateProviderEntry(kind string, entry ProviderEntry) {
	validateProviderName(kind, entry.Name)
	for _, fb := range entry.Fallbacks {
		validateProviderName(kind, fb.Name)
	}
}

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
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
