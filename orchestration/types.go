// Package orchestration provides the research pipeline: the cached stages
// and the orchestrator that fans them out over sub-questions and sources.
//
// Types used by the orchestrator, its stages and its callers.
package orchestration

import (
	"errors"
	"fmt"
	"time"

	"github.com/richinex/sleuth/model"
)

var (
	// ErrEmptyQuery is returned when the query is blank.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrInsufficientEvidence is returned when no branch produced any content.
	// It is distinct from a capability failure: nothing was found, the services worked.
	ErrInsufficientEvidence = errors.New("insufficient evidence: no source produced usable content")
)

// Stage names a pipeline stage.
type Stage string

const (
	StageAnalysis   Stage = "analysis"
	StageSearch     Stage = "search"
	StageExtraction Stage = "extraction"
	StageSynthesis  Stage = "synthesis"
)

// StageError is a fatal stage failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// State is the orchestrator's position in a run.
type State string

const (
	StateAnalyzing    State = "analyzing"
	StateSearching    State = "searching"
	StateExtracting   State = "extracting"
	StateSynthesizing State = "synthesizing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Progress is reported as a run advances.
type Progress struct {
	RunID     string
	State     State
	Message   string
	Completed int
	Total     int
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// FailedSearch records a sub-question whose search failed after retries.
type FailedSearch struct {
	SubQuestionID int    `json:"sub_question_id" yaml:"sub_question_id"`
	Query         string `json:"query" yaml:"query"`
	Error         string `json:"error" yaml:"error"`
}

// Stats summarizes a run.
type Stats struct {
	SubQuestions int `json:"sub_questions" yaml:"sub_questions"`
	Sources      int `json:"sources" yaml:"sources"`
	Extracted    int `json:"extracted" yaml:"extracted"`
	Skipped      int `json:"skipped" yaml:"skipped"`
	CacheHits    int `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses  int `json:"cache_misses" yaml:"cache_misses"`
}

// Report is the outcome of one research run.
type Report struct {
	RunID          string                `json:"run_id" yaml:"run_id"`
	Query          string                `json:"query" yaml:"query"`
	State          State                 `json:"state" yaml:"state"`
	Answer         string                `json:"answer" yaml:"answer"`
	Citations      []model.Citation      `json:"citations" yaml:"citations"`
	Skipped        []model.SkippedSource `json:"skipped_sources" yaml:"skipped_sources"`
	FailedSearches []FailedSearch        `json:"failed_searches,omitempty" yaml:"failed_searches,omitempty"`
	Analysis       *model.AnalysisResult `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Searches       []model.SearchResult  `json:"searches,omitempty" yaml:"searches,omitempty"`
	Stats          Stats                 `json:"stats" yaml:"stats"`
	StartedAt      time.Time             `json:"started_at" yaml:"started_at"`
	Duration       time.Duration         `json:"duration" yaml:"duration"`
	Error          string                `json:"error,omitempty" yaml:"error,omitempty"`
}
