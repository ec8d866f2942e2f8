package config_test

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/OccupiedPorcupine/beat-your-meet-sub000/internal/config"
)

// No t.Parallel in the expansion tests: t.Setenv forbids it.

func TestExpandEnv_SetVariable(t *testing.T) {
	t.Setenv("BEAT_TEST_KEY", "sk-from-env")
	yaml := `
providers:
  llm_fast:
    name: openai
    api_key: ${BEAT_TEST_KEY}
  llm_large:
    name: openai
  stt:
    name: deepgram
  tts:
    name: elevenlabs
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.FastLLM.APIKey != "sk-from-env" {
		t.Errorf("api_key: got %q, want %q", cfg.Providers.FastLLM.APIKey, "sk-from-env")
	}
}

func TestExpandEnv_UnsetVariableIsEmpty(t *testing.T) {
	yaml := `
providers:
  llm_fast:
    name: openai
    api_key: "${BEAT_TEST_DEFINITELY_UNSET}"
  llm_large:
    name: openai
  stt:
    name: deepgram
  tts:
    name: elevenlabs
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.FastLLM.APIKey != "" {
		t.Errorf("api_key: got %q, want empty", cfg.Providers.FastLLM.APIKey)
	}
}

func TestExpandEnv_UnsetVariableUsesDefault(t *testing.T) {
	yaml := `
providers:
  llm_fast:
    name: openai
    base_url: ${BEAT_TEST_DEFINITELY_UNSET:-http://localhost:11434}
  llm_large:
    name: openai
  stt:
    name: deepgram
  tts:
    name: elevenlabs
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.FastLLM.BaseURL != "http://localhost:11434" {
		t.Errorf("base_url: got %q, want default", cfg.Providers.FastLLM.BaseURL)
	}
}

func TestExpandEnv_SetVariableBeatsDefault(t *testing.T) {
	t.Setenv("BEAT_TEST_URL", "http://gpu-box:11434")
	yaml := `
providers:
  llm_fast:
    name: openai
    base_url: ${BEAT_TEST_URL:-http://localhost:11434}
  llm_large:
    name: openai
  stt:
    name: deepgram
  tts:
    name: elevenlabs
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.FastLLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("base_url: got %q, want env value", cfg.Providers.FastLLM.BaseURL)
	}
}

func TestExpandEnv_BareDollarUntouched(t *testing.T) {
	// Only ${VAR} syntax expands; a bare $WORD stays literal.
	yaml := `
providers:
  llm_fast:
    name: openai
    api_key: $NOT_EXPANDED
  llm_large:
    name: openai
  stt:
    name: deepgram
  tts:
    name: elevenlabs
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.FastLLM.APIKey != "$NOT_EXPANDED" {
		t.Errorf("api_key: got %q, want literal $NOT_EXPANDED", cfg.Providers.FastLLM.APIKey)
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "beat.yaml")
	writeFile(t, path, minimalYAML)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.STT.Name != "deepgram" {
		t.Errorf("providers.stt.name: got %q, want %q", cfg.Providers.STT.Name, "deepgram")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/beat.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error should mention open, got: %v", err)
	}
}

func TestLoad_InvalidFileNamesPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "beat.yaml")
	writeFile(t, path, "server:\n  log_level: bananas\n")

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should name the file path, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	if !slices.Contains(config.ValidProviderNames["llm"], "openai") {
		t.Error(`ValidProviderNames["llm"] should contain "openai"`)
	}
	if !slices.Contains(config.ValidProviderNames["stt"], "deepgram") {
		t.Error(`ValidProviderNames["stt"] should contain "deepgram"`)
	}
	if !slices.Contains(config.ValidProviderNames["vad"], "energy") {
		t.Error(`ValidProviderNames["vad"] should contain "energy"`)
	}
}
