package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/sleuth/cache"
	"github.com/richinex/sleuth/config"
)

// withStore opens the configured cache store for a maintenance command.
func withStore(ctx context.Context, opts Options, fn func(*cache.Store, config.Settings) error) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(store, settings)
}

// parseNamespaces resolves namespace arguments. No arguments means all.
func parseNamespaces(args []string) ([]cache.Namespace, error) {
	if len(args) == 0 {
		return cache.Namespaces(), nil
	}
	var out []cache.Namespace
	for _, arg := range args {
		if strings.EqualFold(arg, "all") {
			return cache.Namespaces(), nil
		}
		ns, err := cache.ParseNamespace(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, nil
}

// ClearCache removes every entry of the given namespaces.
func ClearCache(ctx context.Context, args []string, opts Options) error {
	namespaces, err := parseNamespaces(args)
	if err != nil {
		return err
	}

	return withStore(ctx, opts, func(store *cache.Store, _ config.Settings) error {
		for _, ns := range namespaces {
			n, err := store.Clear(ctx, ns)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d %s entries\n", n, ns)
		}
		return nil
	})
}

// SweepCache evicts expired entries.
func SweepCache(ctx context.Context, opts Options) error {
	return withStore(ctx, opts, func(store *cache.Store, _ config.Settings) error {
		n, err := store.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d expired entries\n", n)
		return nil
	})
}

// CacheStats prints entry counts per namespace.
func CacheStats(ctx context.Context, opts Options) error {
	return withStore(ctx, opts, func(store *cache.Store, settings config.Settings) error {
		stats, err := store.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}

		location := settings.Cache.Path
		if settings.Cache.Backend == config.BackendRedis {
			location = settings.Cache.RedisAddr
		}
		fmt.Printf("Cache: %s (%s)\n", settings.Cache.Backend, location)

		total := 0
		for _, ns := range cache.Namespaces() {
			n := stats[string(ns)]
			total += n
			fmt.Printf("  %-10s %d\n", ns, n)
		}
		fmt.Printf("  %-10s %d\n", "total", total)
		return nil
	})
}
