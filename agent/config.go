// Agent configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values and prompt texts hidden

package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSubQuestionBounds means the sub-question bounds are unusable.
	ErrInvalidSubQuestionBounds = errors.New("invalid sub-question bounds")
	// ErrInvalidExcerpt means the excerpt length is not positive.
	ErrInvalidExcerpt = errors.New("excerpt length must be positive")
)

// Config holds the decomposition and synthesis settings.
// Following Dave's naming advice: use agent.Config, not agent.AgentConfig.
type Config struct {
	// MinSubQuestions is the lower bound asked of the model. It is a request, not a check.
	MinSubQuestions int

	// MaxSubQuestions caps the decomposition; extra sub-questions are dropped.
	MaxSubQuestions int

	// ExcerptChars bounds each source excerpt in the synthesis context.
	ExcerptChars int

	// AnalysisPrompt overrides the structured decomposition system prompt.
	AnalysisPrompt string

	// FallbackPrompt overrides the plain-text decomposition system prompt.
	FallbackPrompt string

	// SynthesisPrompt overrides the synthesis system prompt.
	SynthesisPrompt string
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		MinSubQuestions: 3,
		MaxSubQuestions: 5,
		ExcerptChars:    500,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinSubQuestions < 1 || c.MaxSubQuestions < c.MinSubQuestions {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidSubQuestionBounds, c.MinSubQuestions, c.MaxSubQuestions)
	}
	if c.ExcerptChars <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidExcerpt, c.ExcerptChars)
	}
	return nil
}

func (c Config) analysisPrompt() string {
	if c.AnalysisPrompt != "" {
		return c.AnalysisPrompt
	}
	return fmt.Sprintf(defaultAnalysisPrompt, c.MinSubQuestions, c.MaxSubQuestions)
}

func (c Config) fallbackPrompt() string {
	if c.FallbackPrompt != "" {
		return c.FallbackPrompt
	}
	return fmt.Sprintf(defaultFallbackPrompt, c.MinSubQuestions, c.MaxSubQuestions)
}

func (c Config) synthesisPrompt() string {
	if c.SynthesisPrompt != "" {
		return c.SynthesisPrompt
	}
	return defaultSynthesisPrompt
}

const defaultAnalysisPrompt = `You are an expert at breaking down complex research questions into simpler components.
Given a research query, you will:
1. Identify %d-%d key sub-questions that need to be answered
2. For each sub-question, provide brief reasoning on why it's relevant
3. Create an optimized search query for each sub-question

Respond with a JSON object only, in this shape:
{
  "sub_questions": [
    {"question": "...", "reasoning": "...", "search_query": "..."}
  ]
}`

const defaultFallbackPrompt = "Break down this research query into %d-%d key search queries. " +
	"Reply with one search query per line and nothing else."

const defaultSynthesisPrompt = `You are an expert researcher who synthesizes information from multiple sources.
Given a research query and the information gathered from various sources, create a comprehensive answer that:
1. Begins with a concise summary of the main findings
2. Organizes information logically by sub-topic
3. Cites sources inline with their bracketed number, for example [2]
4. Is comprehensive but focused on the query
5. Identifies any gaps or limitations in the available information`
