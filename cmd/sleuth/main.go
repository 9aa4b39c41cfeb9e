// Package main provides the sleuth CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/richinex/sleuth/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider   string
	configPath string
	cacheKind  string
	cachePath  string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "sleuth",
		Short: "Cache-backed web research with LLM synthesis",
		Long: `A CLI tool that answers research questions from the web.

A query is broken into sub-questions, each sub-question is searched,
the top sources are read, and an LLM writes a cited answer.

Every stage is cached (analysis, search, content), so repeated or
overlapping queries reuse earlier work.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider ("+strings.Join(providerNames(), ", ")+")")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&cacheKind, "cache", "", "Cache backend (sqlite, memory, redis)")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache-path", "", "SQLite cache file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(researchCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(providersCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func baseOptions() cli.Options {
	opts := cli.DefaultOptions()
	opts.Provider = provider
	opts.ConfigPath = configPath
	opts.CacheBackend = cacheKind
	opts.CachePath = cachePath
	opts.Verbose = verbose
	return opts
}

func researchCmd() *cobra.Command {
	opts := cli.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "research [query]",
		Short: "Research a question and print a cited answer",
		Long: `Research a question end to end.

Progress is printed to stderr; the report goes to stdout.

Use --skip-cache to bypass cached stages:
  --skip-cache content        re-read every page
  --skip-cache search,content re-run searches and re-read pages
  --skip-cache all            ignore the cache entirely
Fresh results are still written back to the cache.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := baseOptions()
			base.SearchProvider = opts.SearchProvider
			base.MaxSources = opts.MaxSources
			base.SkipCache = opts.SkipCache
			base.Format = opts.Format
			base.Stream = opts.Stream
			base.Timeout = opts.Timeout
			base.MetricsAddr = opts.MetricsAddr
			return cli.Research(cmd.Context(), strings.Join(args, " "), base)
		},
	}

	cmd.Flags().StringVarP(&opts.SearchProvider, "search", "s", "", "Search provider (tavily, brave, duckduckgo)")
	cmd.Flags().IntVarP(&opts.MaxSources, "max-sources", "n", 0, "Sources to read per sub-question")
	cmd.Flags().StringSliceVar(&opts.SkipCache, "skip-cache", nil, "Bypass cached stages (analysis, search, content, all)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", opts.Format, "Output format (text, markdown, json, yaml)")
	cmd.Flags().BoolVar(&opts.Stream, "stream", false, "Stream the answer as it is written (text format only)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Abort the run after this long (0 disables)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")

	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the research cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear [namespace...]",
		Short: "Remove cached entries (analysis, search, content; default all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ClearCache(cmd.Context(), args, baseOptions())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Remove expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.SweepCache(cmd.Context(), baseOptions())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show entry counts per namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.CacheStats(cmd.Context(), baseOptions())
		},
	})

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported LLM and search providers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cli.ListProviders()
		},
	}
}

func providerNames() []string {
	return []string{"openai", "anthropic", "deepseek", "gemini", "deepinfra"}
}
