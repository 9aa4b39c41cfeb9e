// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Pipeline wiring hidden
// - Streaming and progress display hidden

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/richinex/sleuth/agent"
	"github.com/richinex/sleuth/cache"
	"github.com/richinex/sleuth/config"
	"github.com/richinex/sleuth/orchestration"
	"github.com/richinex/sleuth/tools"
	"go.uber.org/zap"
)

// Options holds CLI execution options.
type Options struct {
	Provider       string
	ConfigPath     string
	SearchProvider string
	MaxSources     int
	CacheBackend   string
	CachePath      string
	SkipCache      []string // namespaces, or "all"
	Format         string
	Stream         bool
	Timeout        time.Duration
	MetricsAddr    string
	Verbose        bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		Format:  string(FormatText),
		Timeout: 5 * time.Minute,
	}
}

// parseSkipCache converts --skip-cache values to per-namespace switches.
func parseSkipCache(values []string) (orchestration.SkipCache, error) {
	var skip orchestration.SkipCache
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if strings.EqualFold(part, "all") {
				return orchestration.SkipAll(), nil
			}
			ns, err := cache.ParseNamespace(part)
			if err != nil {
				return orchestration.SkipCache{}, err
			}
			skip.Set(ns)
		}
	}
	return skip, nil
}

// Research runs one research query and prints the report.
func Research(ctx context.Context, query string, opts Options) error {
	format, err := ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	skip, err := parseSkipCache(opts.SkipCache)
	if err != nil {
		return err
	}

	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if opts.MetricsAddr != "" {
		stop := serveMetrics(opts.MetricsAddr, logger)
		defer stop()
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	store, cleanup, err := openStore(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	provider, err := createProvider(settings)
	if err != nil {
		return err
	}
	searcher, err := createSearcher(settings)
	if err != nil {
		return err
	}

	// Streaming only makes sense for human readable output.
	streaming := opts.Stream && format == FormatText
	agentCfg := settings.Research.Agent()
	agentOpts := []agent.Option{agent.WithLogger(logger)}

	var (
		chunks chan string
		relay  sync.WaitGroup
	)
	if streaming {
		chunks = make(chan string)
		relay.Add(1)
		go func() {
			defer relay.Done()
			for chunk := range chunks {
				fmt.Print(chunk)
			}
		}()
	}

	orch, err := orchestration.New(store, orchestration.Capabilities{
		Decomposer:  agent.NewDecomposer(provider, agentCfg, agentOpts...),
		Searcher:    searcher,
		Fetcher:     createFetcher(settings),
		Synthesizer: agent.NewSynthesizer(provider, agentCfg, append(agentOpts, agent.WithStream(chunks))...),
	},
		orchestration.WithLogger(logger),
		orchestration.WithProgress(progressPrinter(format, streaming)),
	)
	if err != nil {
		return err
	}

	cfg := settings.Research.Orchestration()
	cfg.SkipCache = skip

	logger.Debug("starting research",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
		zap.String("searcher", searcher.Name()),
		zap.String("cache", settings.Cache.Backend))

	report, runErr := orch.Run(ctx, query, cfg)

	if streaming {
		close(chunks)
		relay.Wait()
		if report != nil && report.Answer != "" {
			fmt.Println()
		}
	}

	if report == nil {
		return runErr
	}
	if err := Render(os.Stdout, report, format, RenderOptions{OmitAnswer: streaming, Verbose: opts.Verbose}); err != nil {
		return err
	}
	return describeError(runErr)
}

// describeError turns run failures into user-facing errors.
func describeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, orchestration.ErrInsufficientEvidence):
		return fmt.Errorf("research failed: %w (try --skip-cache content or a different query)", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("research timed out: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("research cancelled: %w", err)
	default:
		return fmt.Errorf("research failed: %w", err)
	}
}

// progressPrinter writes progress lines to stderr for text output.
func progressPrinter(format Format, streaming bool) orchestration.ProgressFunc {
	if format != FormatText {
		return nil
	}
	return func(p orchestration.Progress) {
		if p.State == orchestration.StateDone {
			return
		}
		if streaming && p.State == orchestration.StateSynthesizing {
			fmt.Fprintf(os.Stderr, "[%s] %s\n\n", p.State, p.Message)
			return
		}
		if p.Total > 1 {
			fmt.Fprintf(os.Stderr, "[%s %d/%d] %s\n", p.State, p.Completed, p.Total, p.Message)
			return
		}
		fmt.Fprintf(os.Stderr, "[%s] %s\n", p.State, p.Message)
	}
}

// ListProviders prints the supported LLM and search providers.
func ListProviders() {
	fmt.Println("LLM providers:")
	for _, name := range config.SupportedProviders() {
		model, _ := config.ModelFor(name)
		_, keyErr := config.APIKeyFor(name)
		status := "configured"
		if keyErr != nil {
			status = "no API key"
		}
		fmt.Printf("  %-10s %-40s %s\n", name, model, status)
	}

	fmt.Println("\nSearch providers:")
	for _, name := range tools.SupportedSearchers() {
		fmt.Printf("  %s\n", name)
	}
}
