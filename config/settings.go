// Package config provides application settings loaded from environment variables
// and an optional YAML file.
//
// Settings are created via New() or Load() which handle:
// - Default value application
// - Config file parsing (viper), then environment overrides
// - Provider-specific configuration lookup
// - Validation with sentinel errors

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/sleuth/agent"
	"github.com/richinex/sleuth/internal/logging"
	"github.com/richinex/sleuth/orchestration"
	"github.com/richinex/sleuth/tools"
	"github.com/spf13/viper"
)

var (
	// ErrUnknownProvider means the LLM provider is not supported.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrInvalidCacheBackend means the cache backend is not supported.
	ErrInvalidCacheBackend = errors.New("invalid cache backend")
	// ErrInvalidSearchProvider means the search provider is not supported.
	ErrInvalidSearchProvider = errors.New("invalid search provider")
	// ErrInvalidLogLevel means the log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidResearch means the research options are out of range.
	ErrInvalidResearch = errors.New("invalid research settings")
)

// Cache backends.
const (
	BackendSqlite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Settings holds all application configuration.
type Settings struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Research ResearchConfig `mapstructure:"research"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Log      LogConfig      `mapstructure:"log"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	MaxTokens   uint32  `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// ResearchConfig holds pipeline options.
type ResearchConfig struct {
	MaxSources      int               `mapstructure:"max_sources"`
	MaxSubQuestions int               `mapstructure:"max_sub_questions"`
	MaxContentChars int               `mapstructure:"max_content_chars"`
	ExcerptChars    int               `mapstructure:"excerpt_chars"`
	Concurrency     ConcurrencyConfig `mapstructure:"concurrency"`
	TTL             TTLConfig         `mapstructure:"ttl"`
	Retry           tools.RetryPolicy `mapstructure:"retry"`
}

// ConcurrencyConfig bounds the fan-out.
type ConcurrencyConfig struct {
	SubQuestions int `mapstructure:"sub_questions"`
	Sources      int `mapstructure:"sources"`
	Global       int `mapstructure:"global"`
}

// TTLConfig holds cache lifetimes per namespace.
type TTLConfig struct {
	Analysis      time.Duration `mapstructure:"analysis"`
	Search        time.Duration `mapstructure:"search"`
	Content       time.Duration `mapstructure:"content"`
	FailedContent time.Duration `mapstructure:"failed_content"`
}

// CacheConfig selects and configures the storage backend.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

// SearchConfig selects the search provider.
type SearchConfig struct {
	Provider     string `mapstructure:"provider"`
	Depth        string `mapstructure:"depth"`
	TavilyAPIKey string `mapstructure:"tavily_api_key"`
	BraveAPIKey  string `mapstructure:"brave_api_key"`
}

// FetchConfig configures page retrieval.
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
	"deepinfra": {"DEEPINFRA_MODEL", "meta-llama/Meta-Llama-3-70B-Instruct", "DEEPINFRA_API_TOKEN"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
	"llama":  "deepinfra",
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	research := orchestration.DefaultConfig()
	agentCfg := agent.DefaultConfig()

	return Settings{
		LLM: LLMConfig{
			Provider:    "openai",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Research: ResearchConfig{
			MaxSources:      research.MaxSources,
			MaxSubQuestions: research.MaxSubQuestions,
			MaxContentChars: research.MaxContentChars,
			ExcerptChars:    agentCfg.ExcerptChars,
			Concurrency: ConcurrencyConfig{
				SubQuestions: research.Concurrency.SubQuestions,
				Sources:      research.Concurrency.Sources,
				Global:       research.Concurrency.Global,
			},
			TTL: TTLConfig{
				Analysis:      research.TTL.Analysis,
				Search:        research.TTL.Search,
				Content:       research.TTL.Content,
				FailedContent: research.TTL.FailedContent,
			},
			Retry: research.Retry,
		},
		Cache: CacheConfig{
			Backend: BackendSqlite,
			Path:    defaultCachePath(),
		},
		Search: SearchConfig{
			Provider: "duckduckgo",
			Depth:    "basic",
		},
		Fetch: FetchConfig{
			Timeout:      tools.DefaultFetchTimeout,
			MaxBodyBytes: tools.DefaultMaxBodyBytes,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".sleuth", "cache.db")
	}
	return filepath.Join(dir, "sleuth", "cache.db")
}

// New creates settings for the specified provider from defaults and environment variables.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	return Load("", provider)
}

// Load creates settings from defaults, then the YAML file at path (if any),
// then environment variables. A non-empty provider argument wins over both.
func Load(path, provider string) (Settings, error) {
	settings := Defaults()

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(&settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if provider == "" {
		provider = settings.LLM.Provider
	}
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}
	if provider != normalizeProvider(settings.LLM.Provider) {
		// A model configured for another provider does not carry over.
		settings.LLM.Model = ""
	}
	settings.LLM.Provider = provider

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	// Get model from environment, then file, then default
	if model := os.Getenv(info.modelEnv); model != "" {
		settings.LLM.Model = model
	}
	if settings.LLM.Model == "" {
		settings.LLM.Model = info.defaultModel
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// applyEnv overrides settings with the environment variables that are set.
func applyEnv(s *Settings) error {
	var err error

	if s.LLM.MaxTokens, err = getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens); err != nil {
		return err
	}
	if s.LLM.Temperature, err = getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature); err != nil {
		return err
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SLEUTH_MAX_SOURCES", &s.Research.MaxSources},
		{"SLEUTH_MAX_SUB_QUESTIONS", &s.Research.MaxSubQuestions},
		{"SLEUTH_CONCURRENCY_SUBQUESTIONS", &s.Research.Concurrency.SubQuestions},
		{"SLEUTH_CONCURRENCY_SOURCES", &s.Research.Concurrency.Sources},
		{"SLEUTH_CONCURRENCY_GLOBAL", &s.Research.Concurrency.Global},
		{"SLEUTH_REDIS_DB", &s.Cache.RedisDB},
	}
	for _, e := range ints {
		if *e.dst, err = getEnvInt(e.key, *e.dst); err != nil {
			return err
		}
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"SLEUTH_CACHE_BACKEND", &s.Cache.Backend},
		{"SLEUTH_CACHE_PATH", &s.Cache.Path},
		{"SLEUTH_REDIS_ADDR", &s.Cache.RedisAddr},
		{"SLEUTH_REDIS_PASSWORD", &s.Cache.RedisPassword},
		{"SLEUTH_SEARCH_PROVIDER", &s.Search.Provider},
		{"TAVILY_API_KEY", &s.Search.TavilyAPIKey},
		{"BRAVE_API_KEY", &s.Search.BraveAPIKey},
		{"SLEUTH_LOG_LEVEL", &s.Log.Level},
		{"SLEUTH_LOG_FILE", &s.Log.File},
	}
	for _, e := range strs {
		*e.dst = getEnvString(e.key, *e.dst)
	}
	return nil
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if _, err := getProviderInfo(normalizeProvider(s.LLM.Provider)); err != nil {
		return err
	}

	switch s.Cache.Backend {
	case BackendSqlite:
		if s.Cache.Path == "" {
			return fmt.Errorf("%w: sqlite backend needs a path", ErrInvalidCacheBackend)
		}
	case BackendMemory:
	case BackendRedis:
		if s.Cache.RedisAddr == "" {
			return fmt.Errorf("%w: redis backend needs an address", ErrInvalidCacheBackend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheBackend, s.Cache.Backend)
	}

	if !isSupportedSearcher(s.Search.Provider) {
		return fmt.Errorf("%w: %q", ErrInvalidSearchProvider, s.Search.Provider)
	}

	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogLevel, err)
	}

	if err := s.Research.Orchestration().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResearch, err)
	}
	if err := s.Research.Agent().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResearch, err)
	}
	return nil
}

func isSupportedSearcher(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "ddg" {
		return true
	}
	for _, s := range tools.SupportedSearchers() {
		if s == name {
			return true
		}
	}
	return false
}

// Orchestration converts the research settings to a run configuration.
func (r ResearchConfig) Orchestration() orchestration.Config {
	return orchestration.Config{
		MaxSources:      r.MaxSources,
		MaxSubQuestions: r.MaxSubQuestions,
		MaxContentChars: r.MaxContentChars,
		Concurrency: orchestration.Concurrency{
			SubQuestions: r.Concurrency.SubQuestions,
			Sources:      r.Concurrency.Sources,
			Global:       r.Concurrency.Global,
		},
		TTL: orchestration.TTL{
			Analysis:      r.TTL.Analysis,
			Search:        r.TTL.Search,
			Content:       r.TTL.Content,
			FailedContent: r.TTL.FailedContent,
		},
		Retry: r.Retry,
	}
}

// Agent converts the research settings to the agent configuration.
func (r ResearchConfig) Agent() agent.Config {
	cfg := agent.DefaultConfig()
	if r.MaxSubQuestions > 0 {
		cfg.MaxSubQuestions = r.MaxSubQuestions
		if cfg.MinSubQuestions > r.MaxSubQuestions {
			cfg.MinSubQuestions = r.MaxSubQuestions
		}
	}
	if r.ExcerptChars > 0 {
		cfg.ExcerptChars = r.ExcerptChars
	}
	return cfg
}

// APIKey returns the key of the configured search provider, if it needs one.
func (s SearchConfig) APIKey() string {
	switch strings.ToLower(s.Provider) {
	case "tavily":
		return s.TavilyAPIKey
	case "brave":
		return s.BraveAPIKey
	default:
		return ""
	}
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the sorted list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
