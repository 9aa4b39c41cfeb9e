package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}

	settings, err = New("llama")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "deepinfra" {
		t.Errorf("expected provider 'deepinfra' (normalized from 'llama'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := settings.Research
	if r.MaxSources != 3 || r.MaxSubQuestions != 5 {
		t.Errorf("unexpected bounds: max_sources=%d max_sub_questions=%d", r.MaxSources, r.MaxSubQuestions)
	}
	if r.Concurrency != (ConcurrencyConfig{SubQuestions: 4, Sources: 3, Global: 8}) {
		t.Errorf("unexpected concurrency: %+v", r.Concurrency)
	}
	if r.TTL.FailedContent >= r.TTL.Content {
		t.Errorf("failed content TTL %v should be shorter than content TTL %v", r.TTL.FailedContent, r.TTL.Content)
	}
	if settings.Search.Provider != "duckduckgo" {
		t.Errorf("expected duckduckgo search, got %q", settings.Search.Provider)
	}
	if settings.Cache.Backend != BackendSqlite || settings.Cache.Path == "" {
		t.Errorf("expected sqlite cache with a path, got %+v", settings.Cache)
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "")

	model, err := ModelFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "gpt-4o" {
		t.Errorf("expected default model, got %q", model)
	}

	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	model, _ = ModelFor("gpt")
	if model != "gpt-4o-mini" {
		t.Errorf("expected model from environment, got %q", model)
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	_, err := New("openai")
	if err == nil {
		t.Error("expected error for invalid LLM_MAX_TOKENS")
	}
}

func TestNewEnvOverrides(t *testing.T) {
	t.Setenv("SLEUTH_MAX_SOURCES", "7")
	t.Setenv("SLEUTH_CONCURRENCY_GLOBAL", "2")
	t.Setenv("SLEUTH_CACHE_BACKEND", "memory")
	t.Setenv("SLEUTH_SEARCH_PROVIDER", "brave")
	t.Setenv("BRAVE_API_KEY", "brave-key")

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Research.MaxSources != 7 {
		t.Errorf("expected max sources 7, got %d", settings.Research.MaxSources)
	}
	if settings.Research.Concurrency.Global != 2 {
		t.Errorf("expected global concurrency 2, got %d", settings.Research.Concurrency.Global)
	}
	if settings.Cache.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %q", settings.Cache.Backend)
	}
	if settings.Search.APIKey() != "brave-key" {
		t.Errorf("expected brave key, got %q", settings.Search.APIKey())
	}
}

func TestNewInvalidCacheBackend(t *testing.T) {
	t.Setenv("SLEUTH_CACHE_BACKEND", "postgres")

	_, err := New("openai")
	if !errors.Is(err, ErrInvalidCacheBackend) {
		t.Errorf("expected ErrInvalidCacheBackend, got %v", err)
	}
}

func TestNewInvalidResearchBounds(t *testing.T) {
	t.Setenv("SLEUTH_MAX_SOURCES", "0")

	_, err := New("openai")
	if !errors.Is(err, ErrInvalidResearch) {
		t.Errorf("expected ErrInvalidResearch, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("ANTHROPIC_MODEL", "")
	t.Setenv("SLEUTH_MAX_SOURCES", "")

	path := filepath.Join(t.TempDir(), "sleuth.yaml")
	content := `
llm:
  provider: claude
  model: claude-3-5-haiku-latest
research:
  max_sources: 5
  ttl:
    search: 2h
  retry:
    max_attempts: 4
cache:
  backend: redis
  redis_addr: localhost:6379
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	settings, err := Load(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider from file, got %q", settings.LLM.Provider)
	}
	if settings.LLM.Model != "claude-3-5-haiku-latest" {
		t.Errorf("expected model from file, got %q", settings.LLM.Model)
	}
	if settings.Research.MaxSources != 5 {
		t.Errorf("expected max sources 5, got %d", settings.Research.MaxSources)
	}
	if settings.Research.TTL.Search != 2*time.Hour {
		t.Errorf("expected search TTL 2h, got %v", settings.Research.TTL.Search)
	}
	if settings.Research.TTL.Analysis != Defaults().Research.TTL.Analysis {
		t.Errorf("unset TTL should keep its default, got %v", settings.Research.TTL.Analysis)
	}
	if settings.Research.Retry.MaxAttempts != 4 {
		t.Errorf("expected 4 attempts, got %d", settings.Research.Retry.MaxAttempts)
	}
	if settings.Cache.Backend != BackendRedis {
		t.Errorf("expected redis backend, got %q", settings.Cache.Backend)
	}
}

func TestLoadProviderArgumentWins(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "")

	path := filepath.Join(t.TempDir(), "sleuth.yaml")
	content := "llm:\n  provider: anthropic\n  model: claude-3-5-haiku-latest\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	settings, err := Load(path, "gemini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "gemini" {
		t.Errorf("expected provider argument to win, got %q", settings.LLM.Provider)
	}
	if settings.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("model for another provider should not carry over, got %q", settings.LLM.Model)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "openai")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestResearchConversions(t *testing.T) {
	r := Defaults().Research
	r.MaxSubQuestions = 2
	r.ExcerptChars = 120

	orch := r.Orchestration()
	if orch.MaxSubQuestions != 2 || orch.Concurrency.Global != r.Concurrency.Global {
		t.Errorf("unexpected orchestration config: %+v", orch)
	}
	if err := orch.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}

	a := r.Agent()
	if a.MaxSubQuestions != 2 || a.MinSubQuestions > 2 {
		t.Errorf("unexpected agent bounds: min=%d max=%d", a.MinSubQuestions, a.MaxSubQuestions)
	}
	if a.ExcerptChars != 120 {
		t.Errorf("expected excerpt 120, got %d", a.ExcerptChars)
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) != 5 {
		t.Errorf("expected 5 supported providers, got %v", providers)
	}
}
