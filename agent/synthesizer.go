// Answer synthesis.
//
// Information Hiding:
// - Evidence context layout hidden
// - Excerpt bounding hidden
// - Streaming relay hidden

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/richinex/sleuth/llm"
	"github.com/richinex/sleuth/model"
	"go.uber.org/zap"
)

const excerptEllipsis = "..."

// Synthesizer writes the final answer from a corpus with an LLM.
type Synthesizer struct {
	config Config
	client *llm.Client
	logger *zap.Logger
	chunks chan<- string
}

// NewSynthesizer creates a Synthesizer over provider.
func NewSynthesizer(provider llm.Provider, config Config, opts ...Option) *Synthesizer {
	o := applyOptions(opts)
	return &Synthesizer{
		config: config,
		client: llm.NewClient(provider),
		logger: o.logger,
		chunks: o.chunks,
	}
}

// Synthesize produces the answer for corpus.
// Sources are numbered in citation order, so "[i]" in the text refers to
// the i-th entry of the returned citations.
func (s *Synthesizer) Synthesize(ctx context.Context, corpus *model.Corpus) (model.Answer, error) {
	prompt := BuildContext(corpus, s.config.ExcerptChars)

	var (
		text string
		err  error
	)
	if s.chunks != nil {
		text, err = s.client.Stream(ctx, s.config.synthesisPrompt(), prompt, s.chunks)
	} else {
		text, err = s.client.Ask(ctx, s.config.synthesisPrompt(), prompt)
	}
	if err != nil {
		return model.Answer{}, err
	}

	s.logger.Debug("synthesis complete",
		zap.String("provider", s.client.Provider().Name()),
		zap.Int("sources", corpus.Len()),
		zap.Int("answer_chars", len(text)))

	return model.Answer{Text: text, Citations: corpus.Citations()}, nil
}

// BuildContext renders the user message sent for synthesis.
func BuildContext(corpus *model.Corpus, excerptChars int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Main Research Query: %s\n\n", corpus.Query)

	sb.WriteString("Sub-questions explored:\n")
	for _, section := range corpus.Sections {
		fmt.Fprintf(&sb, "- %s\n", section.SubQuestion.Text)
	}

	sb.WriteString("\nSources Information:\n")
	for i, ev := range corpus.Evidence() {
		title := ev.Source.Title
		if title == "" {
			title = ev.Content.Title
		}
		fmt.Fprintf(&sb, "\nSource %d: %s\nURL: %s\nContent snippet: %s\n",
			i+1, title, ev.Source.URL, excerpt(ev.Content.Text, excerptChars))
	}

	if len(corpus.Skipped) > 0 {
		sb.WriteString("\nSources that could not be retrieved:\n")
		for _, sk := range corpus.Skipped {
			fmt.Fprintf(&sb, "- %s (%s)\n", sk.URL, sk.Reason)
		}
	}

	sb.WriteString("\nPlease synthesize a comprehensive answer to the main research query " +
		"based on these sources, citing them by number.")
	return sb.String()
}

// excerpt returns the first n runes of text, marking the cut.
func excerpt(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + excerptEllipsis
}
