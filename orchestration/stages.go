// Cached pipeline stages.
//
// Information Hiding:
// - Cache key derivation per stage hidden
// - Retry and ceiling wiring around capability calls hidden
// - Result post-processing (IDs, ranks, dedupe) hidden

package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/richinex/sleuth/cache"
	"github.com/richinex/sleuth/internal/logging"
	"github.com/richinex/sleuth/internal/metrics"
	"github.com/richinex/sleuth/model"
	"github.com/richinex/sleuth/tools"
	"go.uber.org/zap"
)

// stageEnv is what every stage shares within a run.
type stageEnv struct {
	store  *cache.Store
	cfg    Config
	gate   *Gate
	logger *zap.Logger
}

func newStageEnv(store *cache.Store, cfg Config, gate *Gate, logger *zap.Logger) stageEnv {
	return stageEnv{store: store, cfg: cfg, gate: gate, logger: logging.OrNop(logger)}
}

func observeStage(stage Stage, start time.Time) {
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

// AnalysisStage decomposes a query, cached under the analysis namespace.
type AnalysisStage struct {
	env        stageEnv
	decomposer Decomposer
}

// NewAnalysisStage creates an analysis stage. gate may be shared with other stages.
func NewAnalysisStage(store *cache.Store, d Decomposer, cfg Config, gate *Gate, logger *zap.Logger) *AnalysisStage {
	return &AnalysisStage{env: newStageEnv(store, cfg, gate, logger), decomposer: d}
}

// Run returns the analysis for query and whether it came from the cache.
// Queries that normalize identically share one entry. The result always
// holds at least one sub-question.
func (s *AnalysisStage) Run(ctx context.Context, query string, refresh bool) (model.AnalysisResult, bool, error) {
	defer observeStage(StageAnalysis, time.Now())

	normalized := cache.Normalize(query)
	if normalized == "" {
		return model.AnalysisResult{}, false, ErrEmptyQuery
	}
	// The capability sees the user's casing; only whitespace is tidied.
	asked := strings.Join(strings.Fields(query), " ")

	key := cache.NewKey(cache.NamespaceAnalysis, normalized)
	result, res, err := cache.GetOrComputeJSON(ctx, s.env.store, cache.NamespaceAnalysis, key, refresh,
		func(ctx context.Context) (model.AnalysisResult, time.Duration, error) {
			subs, err := tools.RetryValue(ctx, s.env.cfg.Retry, "decompose", func(ctx context.Context) ([]model.SubQuestion, error) {
				return call(ctx, s.env.gate, "decompose", func(ctx context.Context) ([]model.SubQuestion, error) {
					return s.decomposer.Decompose(ctx, asked)
				})
			})
			if err != nil {
				return model.AnalysisResult{}, 0, err
			}
			return buildAnalysis(asked, normalized, subs, s.env.cfg.MaxSubQuestions), s.env.cfg.TTL.Analysis, nil
		})
	if err != nil {
		return model.AnalysisResult{}, false, err
	}

	s.env.logger.Debug("analysis ready",
		zap.String("namespace", string(cache.NamespaceAnalysis)),
		zap.Bool("hit", res.Hit),
		zap.Int("sub_questions", len(result.SubQuestions)))
	return result, res.Hit, nil
}

// buildAnalysis drops blank sub-questions, fills missing search queries,
// applies the cap and numbers the result. An empty decomposition becomes
// a single sub-question equal to the normalized query.
func buildAnalysis(query, normalized string, subs []model.SubQuestion, limit int) model.AnalysisResult {
	out := make([]model.SubQuestion, 0, len(subs))
	for _, sq := range subs {
		sq.Text = strings.TrimSpace(sq.Text)
		sq.SearchQuery = strings.TrimSpace(sq.SearchQuery)
		if sq.Text == "" && sq.SearchQuery == "" {
			continue
		}
		if sq.Text == "" {
			sq.Text = sq.SearchQuery
		}
		if sq.SearchQuery == "" {
			sq.SearchQuery = sq.Text
		}
		out = append(out, sq)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	if len(out) == 0 {
		out = append(out, model.SubQuestion{Text: normalized, SearchQuery: normalized})
	}
	for i := range out {
		out[i].ID = i
	}
	return model.AnalysisResult{OriginalQuery: query, SubQuestions: out}
}

// SearchStage finds sources for one sub-question, cached under the search namespace.
type SearchStage struct {
	env      stageEnv
	searcher Searcher
}

// NewSearchStage creates a search stage.
func NewSearchStage(store *cache.Store, searcher Searcher, cfg Config, gate *Gate, logger *zap.Logger) *SearchStage {
	return &SearchStage{env: newStageEnv(store, cfg, gate, logger), searcher: searcher}
}

// Run returns at most maxSources ranked, de-duplicated sources for sq and
// whether they came from the cache. An empty list is a valid result.
func (s *SearchStage) Run(ctx context.Context, sq model.SubQuestion, maxSources int, refresh bool) (model.SearchResult, bool, error) {
	defer observeStage(StageSearch, time.Now())

	query := sq.SearchQuery
	if strings.TrimSpace(query) == "" {
		query = sq.Text
	}
	key := cache.NewKey(cache.NamespaceSearch, fmt.Sprintf("%s max=%d", query, maxSources))

	sources, res, err := cache.GetOrComputeJSON(ctx, s.env.store, cache.NamespaceSearch, key, refresh,
		func(ctx context.Context) ([]model.SourceDescriptor, time.Duration, error) {
			found, err := tools.RetryValue(ctx, s.env.cfg.Retry, "search", func(ctx context.Context) ([]model.SourceDescriptor, error) {
				return call(ctx, s.env.gate, "search", func(ctx context.Context) ([]model.SourceDescriptor, error) {
					return s.searcher.Search(ctx, query, maxSources)
				})
			})
			if err != nil {
				return nil, 0, err
			}
			return rankSources(found, maxSources), s.env.cfg.TTL.Search, nil
		})
	if err != nil {
		return model.SearchResult{}, false, err
	}

	s.env.logger.Debug("search ready",
		zap.Int("sub_question", sq.ID),
		zap.Bool("hit", res.Hit),
		zap.Int("sources", len(sources)))
	return model.SearchResult{SubQuestionID: sq.ID, Query: query, Sources: sources}, res.Hit, nil
}

// rankSources removes blank and duplicate URLs, truncates to limit and assigns ranks.
func rankSources(found []model.SourceDescriptor, limit int) []model.SourceDescriptor {
	seen := make(map[string]bool, len(found))
	out := make([]model.SourceDescriptor, 0, len(found))
	for _, src := range found {
		src.URL = strings.TrimSpace(src.URL)
		if src.URL == "" {
			continue
		}
		norm := cache.NormalizeURL(src.URL)
		if seen[norm] {
			continue
		}
		seen[norm] = true

		src.Rank = len(out)
		out = append(out, src)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// SynthesisStage produces the answer. It is never cached.
type SynthesisStage struct {
	env         stageEnv
	synthesizer Synthesizer
}

// NewSynthesisStage creates a synthesis stage.
func NewSynthesisStage(synthesizer Synthesizer, cfg Config, gate *Gate, logger *zap.Logger) *SynthesisStage {
	return &SynthesisStage{env: newStageEnv(nil, cfg, gate, logger), synthesizer: synthesizer}
}

// Run synthesizes an answer for corpus, retrying transient failures.
func (s *SynthesisStage) Run(ctx context.Context, corpus *model.Corpus) (model.Answer, error) {
	defer observeStage(StageSynthesis, time.Now())

	return tools.RetryValue(ctx, s.env.cfg.Retry, "synthesize", func(ctx context.Context) (model.Answer, error) {
		return call(ctx, s.env.gate, "synthesize", func(ctx context.Context) (model.Answer, error) {
			return s.synthesizer.Synthesize(ctx, corpus)
		})
	})
}
