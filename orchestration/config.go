// Run configuration.
//
// Information Hiding:
// - Default values hidden
// - Validation rules hidden

package orchestration

import (
	"errors"
	"fmt"
	"time"

	"github.com/richinex/sleuth/cache"
	"github.com/richinex/sleuth/tools"
)

var (
	// ErrInvalidMaxSources means max_sources is not positive.
	ErrInvalidMaxSources = errors.New("max sources must be positive")
	// ErrInvalidConcurrency means a concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("concurrency limits must be positive")
	// ErrInvalidTTL means a TTL is negative.
	ErrInvalidTTL = errors.New("cache TTLs must not be negative")
)

// Config holds the options of one research run.
type Config struct {
	// MaxSources caps the sources kept per sub-question.
	MaxSources int

	// MaxSubQuestions caps the decomposition. Zero means no cap.
	MaxSubQuestions int

	// MaxContentChars bounds the cleaned text of one page. Zero means no bound.
	MaxContentChars int

	SkipCache   SkipCache
	Concurrency Concurrency
	TTL         TTL
	Retry       tools.RetryPolicy
}

// SkipCache selects the namespaces whose stored values are ignored for a run.
// Fresh values are still written back.
type SkipCache struct {
	Analysis bool
	Search   bool
	Content  bool
}

// SkipAll bypasses every namespace.
func SkipAll() SkipCache {
	return SkipCache{Analysis: true, Search: true, Content: true}
}

// Any reports whether any namespace is bypassed.
func (s SkipCache) Any() bool {
	return s.Analysis || s.Search || s.Content
}

// Set bypasses the namespace ns.
func (s *SkipCache) Set(ns cache.Namespace) {
	switch ns {
	case cache.NamespaceAnalysis:
		s.Analysis = true
	case cache.NamespaceSearch:
		s.Search = true
	case cache.NamespaceContent:
		s.Content = true
	}
}

// Concurrency bounds the fan-out.
type Concurrency struct {
	SubQuestions int // branches in flight (C1)
	Sources      int // extractions in flight per branch (C2)
	Global       int // external calls in flight across the run
}

// TTL holds per-namespace entry lifetimes. Zero never expires.
type TTL struct {
	Analysis      time.Duration
	Search        time.Duration
	Content       time.Duration
	FailedContent time.Duration
}

// DefaultTTL returns the lifetimes used by the CLI.
func DefaultTTL() TTL {
	return TTL{
		Analysis:      7 * 24 * time.Hour,
		Search:        24 * time.Hour,
		Content:       72 * time.Hour,
		FailedContent: time.Hour,
	}
}

// DefaultConfig returns the defaults: 3 sources per sub-question and 20000 characters per page.
func DefaultConfig() Config {
	return Config{
		MaxSources:      3,
		MaxSubQuestions: 5,
		MaxContentChars: 20000,
		Concurrency: Concurrency{
			SubQuestions: 4,
			Sources:      3,
			Global:       8,
		},
		TTL:   DefaultTTL(),
		Retry: tools.DefaultRetryPolicy(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxSources <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxSources, c.MaxSources)
	}
	if c.Concurrency.SubQuestions <= 0 || c.Concurrency.Sources <= 0 || c.Concurrency.Global <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidConcurrency, c.Concurrency)
	}
	if c.TTL.Analysis < 0 || c.TTL.Search < 0 || c.TTL.Content < 0 || c.TTL.FailedContent < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidTTL, c.TTL)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}
	return nil
}
