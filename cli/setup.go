// Component construction for CLI commands.
//
// Information Hiding:
// - Settings resolution (file, environment, flags) hidden
// - Provider, searcher and fetcher construction hidden
// - Cache backend selection and lifetime hidden

package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richinex/sleuth/cache"
	"github.com/richinex/sleuth/config"
	"github.com/richinex/sleuth/internal/logging"
	"github.com/richinex/sleuth/llm"
	"github.com/richinex/sleuth/storage"
	"github.com/richinex/sleuth/tools"
	"go.uber.org/zap"
)

// loadSettings resolves settings and applies flag overrides.
func loadSettings(opts Options) (config.Settings, error) {
	settings, err := config.Load(opts.ConfigPath, opts.Provider)
	if err != nil {
		return config.Settings{}, err
	}

	if opts.SearchProvider != "" {
		settings.Search.Provider = opts.SearchProvider
	}
	if opts.MaxSources > 0 {
		settings.Research.MaxSources = opts.MaxSources
	}
	if opts.CacheBackend != "" {
		settings.Cache.Backend = opts.CacheBackend
	}
	if opts.CachePath != "" {
		settings.Cache.Path = opts.CachePath
	}
	if opts.Verbose {
		settings.Log.Level = "debug"
	}

	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func newLogger(settings config.Settings) (*zap.Logger, error) {
	logger, err := logging.New(logging.Config{Level: settings.Log.Level, File: settings.Log.File})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

func createSearcher(settings config.Settings) (tools.Searcher, error) {
	return tools.NewSearcher(settings.Search.Provider, settings.Search.APIKey(),
		tools.WithSearchDepth(settings.Search.Depth))
}

func createFetcher(settings config.Settings) *tools.HTTPFetcher {
	opts := []tools.FetcherOption{
		tools.WithFetchTimeout(settings.Fetch.Timeout),
		tools.WithMaxBodyBytes(settings.Fetch.MaxBodyBytes),
	}
	if settings.Fetch.UserAgent != "" {
		opts = append(opts, tools.WithUserAgent(settings.Fetch.UserAgent))
	}
	return tools.NewHTTPFetcher(opts...)
}

// openBackend opens the configured storage backend.
func openBackend(ctx context.Context, cfg config.CacheConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil
	case config.BackendRedis:
		return storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	default:
		return storage.OpenSqlite(cfg.Path)
	}
}

// openStore opens the cache store. The returned cleanup closes the backend.
func openStore(ctx context.Context, settings config.Settings, logger *zap.Logger) (*cache.Store, func(), error) {
	backend, err := openBackend(ctx, settings.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s cache: %w", settings.Cache.Backend, err)
	}

	ttl := settings.Research.TTL
	store := cache.New(backend,
		cache.WithLogger(logger),
		cache.WithTTL(cache.NamespaceAnalysis, ttl.Analysis),
		cache.WithTTL(cache.NamespaceSearch, ttl.Search),
		cache.WithTTL(cache.NamespaceContent, ttl.Content),
	)

	cleanup := func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close cache backend", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// serveMetrics exposes Prometheus metrics on addr until the returned stop is called.
func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
