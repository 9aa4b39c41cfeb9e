// Orchestrator - the research run.
//
// Drives analysis, the nested search/extraction fan-out and synthesis.
// Branch results land in slots indexed by position, so output order never
// depends on completion order.
//
// Information Hiding:
// - Fan-out bounds and the global call ceiling hidden
// - Corpus assembly and citation ordering hidden
// - Run bookkeeping (state, progress, stats, metrics) hidden

package orchestration

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/richinex/sleuth/cache"
	"github.com/richinex/sleuth/internal/logging"
	"github.com/richinex/sleuth/internal/metrics"
	"github.com/richinex/sleuth/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Orchestrator runs research queries against a shared cache store.
// Safe for concurrent use; each Run has its own state.
type Orchestrator struct {
	store    *cache.Store
	caps     Capabilities
	logger   *zap.Logger
	progress ProgressFunc
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// New creates an orchestrator. Every capability is required.
func New(store *cache.Store, caps Capabilities, opts ...Option) (*Orchestrator, error) {
	switch {
	case store == nil:
		return nil, errors.New("orchestrator requires a cache store")
	case caps.Decomposer == nil:
		return nil, errors.New("orchestrator requires a decomposer")
	case caps.Searcher == nil:
		return nil, errors.New("orchestrator requires a searcher")
	case caps.Fetcher == nil:
		return nil, errors.New("orchestrator requires a fetcher")
	case caps.Synthesizer == nil:
		return nil, errors.New("orchestrator requires a synthesizer")
	}

	o := &Orchestrator{
		store:  store,
		caps:   caps,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// branch is the slot filled by one sub-question.
type branch struct {
	search   model.SearchResult
	failed   *FailedSearch
	contents []model.ExtractedContent
}

// run holds the state of one Run call.
type run struct {
	o      *Orchestrator
	cfg    Config
	report *Report
	logger *zap.Logger

	analysis   *AnalysisStage
	search     *SearchStage
	extraction *ExtractionStage
	synthesis  *SynthesisStage

	mu        sync.Mutex // guards state and progress delivery
	state     State
	completed int
	total     int

	hits   atomic.Int64
	misses atomic.Int64
}

// Run executes one research query.
//
// The returned report is non-nil whenever cfg is valid, and describes
// whatever was gathered even when err is non-nil. Fatal analysis or
// synthesis failures are *StageError; a run in which no source produced
// content fails with ErrInsufficientEvidence; cancellation returns ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, query string, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := o.newID()
	logger := o.logger.With(zap.String("run_id", runID))
	gate := NewGate(cfg.Concurrency.Global)

	r := &run{
		o:      o,
		cfg:    cfg,
		logger: logger,
		report: &Report{
			RunID:     runID,
			Query:     query,
			StartedAt: time.Now(),
		},
		analysis:   NewAnalysisStage(o.store, o.caps.Decomposer, cfg, gate, logger),
		search:     NewSearchStage(o.store, o.caps.Searcher, cfg, gate, logger),
		extraction: NewExtractionStage(o.store, o.caps.Fetcher, cfg, gate, logger),
		synthesis:  NewSynthesisStage(o.caps.Synthesizer, cfg, gate, logger),
	}

	err := r.execute(ctx, query)
	r.finish(err)
	return r.report, err
}

func (r *run) execute(ctx context.Context, query string) error {
	cfg := r.cfg

	r.transition(StateAnalyzing, "Analyzing query", 0, 1)
	analysis, hit, err := r.analysis.Run(ctx, query, cfg.SkipCache.Analysis)
	if err != nil {
		return r.fatal(ctx, StageAnalysis, err)
	}
	r.count(hit)
	r.report.Analysis = &analysis
	r.report.Stats.SubQuestions = len(analysis.SubQuestions)

	n := len(analysis.SubQuestions)
	slots := make([]branch, n)

	r.transition(StateSearching, fmt.Sprintf("Researching %d sub-questions", n), 0, n)
	var g errgroup.Group
	g.SetLimit(cfg.Concurrency.SubQuestions)
	for i, sq := range analysis.SubQuestions {
		g.Go(func() error {
			return r.branch(ctx, sq, &slots[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	corpus := r.assemble(analysis, slots)
	if corpus.Empty() {
		return ErrInsufficientEvidence
	}

	r.transition(StateSynthesizing, fmt.Sprintf("Synthesizing answer from %d sources", corpus.Len()), 0, 1)
	answer, err := r.synthesis.Run(ctx, corpus)
	if err != nil {
		return r.fatal(ctx, StageSynthesis, err)
	}

	r.report.Answer = answer.Text
	r.report.Citations = orderCitations(answer.Citations)
	return nil
}

// branch searches one sub-question and extracts its sources into slot.
// Only cancellation is returned as an error; everything else is recorded.
func (r *run) branch(ctx context.Context, sq model.SubQuestion, slot *branch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, hit, err := r.search.Run(ctx, sq, r.cfg.MaxSources, r.cfg.SkipCache.Search)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.logger.Warn("search failed, continuing without sources",
			zap.String("stage", string(StageSearch)),
			zap.Int("sub_question", sq.ID),
			zap.Error(err))
		slot.search = model.SearchResult{SubQuestionID: sq.ID, Query: sq.SearchQuery}
		slot.failed = &FailedSearch{SubQuestionID: sq.ID, Query: sq.SearchQuery, Error: err.Error()}
		r.advance(StateSearching, "Search failed: "+sq.Text)
		return nil
	}
	r.count(hit)
	slot.search = result

	contents := make([]model.ExtractedContent, len(result.Sources))
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency.Sources)
	for j, src := range result.Sources {
		g.Go(func() error {
			c, hit, err := r.extraction.Run(ctx, src, r.cfg.SkipCache.Content)
			if err != nil {
				return err
			}
			r.count(hit)
			contents[j] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slot.contents = contents
	r.advance(StateExtracting, fmt.Sprintf("Read %d sources for: %s", len(result.Sources), sq.Text))
	return nil
}

// assemble builds the corpus in sub-question then rank order.
func (r *run) assemble(analysis model.AnalysisResult, slots []branch) *model.Corpus {
	corpus := &model.Corpus{
		Query:    analysis.OriginalQuery,
		Sections: make([]model.CorpusSection, len(slots)),
	}

	for i, slot := range slots {
		sq := analysis.SubQuestions[i]
		section := model.CorpusSection{SubQuestion: sq}

		for j, src := range slot.search.Sources {
			c := slot.contents[j]
			if c.OK() {
				section.Evidence = append(section.Evidence, model.Evidence{Source: src, Content: c})
				continue
			}
			corpus.Skipped = append(corpus.Skipped, model.SkippedSource{
				SubQuestionID: sq.ID,
				URL:           src.URL,
				Title:         src.Title,
				Reason:        c.Reason,
				Detail:        c.Detail,
			})
		}
		corpus.Sections[i] = section

		r.report.Searches = append(r.report.Searches, slot.search)
		r.report.Stats.Sources += len(slot.search.Sources)
		if slot.failed != nil {
			r.report.FailedSearches = append(r.report.FailedSearches, *slot.failed)
		}
	}

	r.report.Skipped = corpus.Skipped
	r.report.Stats.Extracted = corpus.Len()
	r.report.Stats.Skipped = len(corpus.Skipped)
	return corpus
}

// orderCitations sorts by sub-question then rank, whatever order the synthesizer used.
func orderCitations(citations []model.Citation) []model.Citation {
	out := slices.Clone(citations)
	slices.SortStableFunc(out, func(a, b model.Citation) int {
		if c := cmp.Compare(a.SubQuestionID, b.SubQuestionID); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank, b.Rank)
	})
	return out
}

func (r *run) fatal(ctx context.Context, stage Stage, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrEmptyQuery) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

func (r *run) count(hit bool) {
	if hit {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
}

// transition enters a new state and resets the progress counters.
func (r *run) transition(state State, message string, completed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.completed = completed
	r.total = total
	r.emit(message)
}

// advance marks one unit of the current fan-out complete.
func (r *run) advance(state State, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.completed++
	r.emit(message)
}

// emit must be called with r.mu held.
func (r *run) emit(message string) {
	r.logger.Debug(message, zap.String("state", string(r.state)))
	if r.o.progress == nil {
		return
	}
	r.o.progress(Progress{
		RunID:     r.report.RunID,
		State:     r.state,
		Message:   message,
		Completed: r.completed,
		Total:     r.total,
	})
}

func (r *run) finish(err error) {
	r.report.Duration = time.Since(r.report.StartedAt)
	r.report.Stats.CacheHits = int(r.hits.Load())
	r.report.Stats.CacheMisses = int(r.misses.Load())

	status := "done"
	switch {
	case err == nil:
		r.report.State = StateDone
	case errors.Is(err, ErrInsufficientEvidence):
		r.report.State = StateFailed
		status = "insufficient_evidence"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.report.State = StateFailed
		status = "cancelled"
	default:
		r.report.State = StateFailed
		status = "failed"
	}
	if err != nil {
		r.report.Error = err.Error()
	}
	metrics.RunsCompleted.WithLabelValues(status).Inc()

	r.mu.Lock()
	r.state = r.report.State
	r.completed, r.total = 1, 1
	if err != nil {
		r.emit("Research failed: " + err.Error())
	} else {
		r.emit("Research complete")
	}
	r.mu.Unlock()

	r.logger.Info("research run finished",
		zap.String("state", string(r.report.State)),
		zap.Int("sub_questions", r.report.Stats.SubQuestions),
		zap.Int("extracted", r.report.Stats.Extracted),
		zap.Int("skipped", r.report.Stats.Skipped),
		zap.Int("cache_hits", r.report.Stats.CacheHits),
		zap.Duration("duration", r.report.Duration),
		zap.Error(err))
}
