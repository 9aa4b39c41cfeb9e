// External capabilities consumed by the pipeline.
//
// Information Hiding:
// - The global ceiling on in-flight external calls hidden behind Gate
// - Call accounting (metrics) hidden

package orchestration

import (
	"context"

	"github.com/richinex/sleuth/agent"
	"github.com/richinex/sleuth/internal/metrics"
	"github.com/richinex/sleuth/model"
	"github.com/richinex/sleuth/tools"
	"golang.org/x/sync/semaphore"
)

// Decomposer splits a query into sub-questions.
type Decomposer interface {
	Decompose(ctx context.Context, query string) ([]model.SubQuestion, error)
}

// Searcher finds candidate sources for a search query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SourceDescriptor, error)
}

// Fetcher retrieves and parses one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (tools.Document, error)
}

// Synthesizer writes the answer for a corpus.
type Synthesizer interface {
	Synthesize(ctx context.Context, corpus *model.Corpus) (model.Answer, error)
}

// Capabilities bundles the collaborators of a run.
type Capabilities struct {
	Decomposer  Decomposer
	Searcher    Searcher
	Fetcher     Fetcher
	Synthesizer Synthesizer
}

// Gate bounds the number of external calls in flight.
// Only real calls pass through it; cache hits never take a slot.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate creates a gate admitting n concurrent calls. n <= 0 means unbounded.
func NewGate(n int) *Gate {
	if n <= 0 {
		return &Gate{}
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n))}
}

// call runs fn while holding one slot. It fails fast once ctx is done.
func call[T any](ctx context.Context, g *Gate, capability string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if g != nil && g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return zero, err
		}
		defer g.sem.Release(1)
	}

	metrics.InflightCalls.Inc()
	v, err := fn(ctx)
	metrics.InflightCalls.Dec()

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ExternalCalls.WithLabelValues(capability, outcome).Inc()
	return v, err
}

// Verify the concrete capabilities implement the consumer interfaces
var (
	_ Decomposer  = (*agent.Decomposer)(nil)
	_ Synthesizer = (*agent.Synthesizer)(nil)
	_ Fetcher     = (*tools.HTTPFetcher)(nil)
	_ Searcher    = (tools.Searcher)(nil)
)
