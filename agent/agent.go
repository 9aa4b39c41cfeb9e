// Query decomposition.
//
// Information Hiding:
// - Prompt construction hidden
// - Structured reply parsing and the plain-text fallback hidden
// - LLM communication hidden

package agent

import (
	"context"
	"strings"
	"unicode"

	jsonutil "github.com/richinex/sleuth/internal/json"
	"github.com/richinex/sleuth/internal/logging"
	"github.com/richinex/sleuth/llm"
	"github.com/richinex/sleuth/model"
	"go.uber.org/zap"
)

// Option configures a Decomposer or Synthesizer.
type Option func(*options)

type options struct {
	logger *zap.Logger
	chunks chan<- string
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = logging.OrNop(l) }
}

// WithStream forwards synthesis output to chunks as it is generated.
// The channel is never closed by the Synthesizer.
func WithStream(chunks chan<- string) Option {
	return func(o *options) { o.chunks = chunks }
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Decomposer splits a research query into sub-questions with an LLM.
// Following Dave's naming advice: agent.Decomposer, not agent.QueryDecomposerAgent.
type Decomposer struct {
	config Config
	client *llm.Client
	logger *zap.Logger
}

// NewDecomposer creates a Decomposer over provider.
func NewDecomposer(provider llm.Provider, config Config, opts ...Option) *Decomposer {
	o := applyOptions(opts)
	return &Decomposer{
		config: config,
		client: llm.NewClient(provider),
		logger: o.logger,
	}
}

// Decompose returns the sub-questions for query, at most MaxSubQuestions of them.
// IDs are left zero; the caller numbers them.
//
// A structured JSON reply is requested first. When it cannot be parsed or
// names no sub-questions, a plain prompt is sent and its lines are used.
// Provider errors are returned as is.
func (d *Decomposer) Decompose(ctx context.Context, query string) ([]model.SubQuestion, error) {
	reply, err := d.client.AskWithFormat(ctx, d.config.analysisPrompt(), query, llm.NewJSONObjectFormat())
	if err != nil {
		return nil, err
	}

	subs, parseErr := parseAnalysis(reply)
	if len(subs) > 0 {
		return d.limit(subs), nil
	}

	d.logger.Warn("structured decomposition unusable, falling back to plain prompt",
		zap.String("provider", d.client.Provider().Name()),
		zap.Error(parseErr))

	reply, err = d.client.Ask(ctx, d.config.fallbackPrompt(), query)
	if err != nil {
		return nil, err
	}
	return d.limit(parseLines(reply)), nil
}

func (d *Decomposer) limit(subs []model.SubQuestion) []model.SubQuestion {
	if d.config.MaxSubQuestions > 0 && len(subs) > d.config.MaxSubQuestions {
		return subs[:d.config.MaxSubQuestions]
	}
	return subs
}

func parseAnalysis(reply string) ([]model.SubQuestion, error) {
	resp, err := jsonutil.ExtractJSONFromResponse[analysisResponse](reply)
	if err != nil {
		return nil, err
	}

	var subs []model.SubQuestion
	for _, item := range resp.SubQuestions {
		text := strings.TrimSpace(item.Question)
		if text == "" {
			continue
		}
		subs = append(subs, model.SubQuestion{
			Text:        text,
			SearchQuery: strings.TrimSpace(item.SearchQuery),
			Reasoning:   strings.TrimSpace(item.Reasoning),
		})
	}
	return subs, nil
}

// parseLines turns a plain list reply into sub-questions whose text doubles as the search query.
func parseLines(reply string) []model.SubQuestion {
	var subs []model.SubQuestion
	for _, line := range strings.Split(reply, "\n") {
		line = stripListMarker(strings.TrimSpace(line))
		// Lead-in lines such as "Here are the queries:" are not queries.
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		subs = append(subs, model.SubQuestion{Text: line, SearchQuery: line})
	}
	return subs
}

// stripListMarker removes a leading bullet ("-", "*", "•") or number ("1.", "2)")
// and surrounding quotes.
func stripListMarker(line string) string {
	for _, bullet := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, bullet) {
			line = strings.TrimSpace(line[len(bullet):])
			break
		}
	}

	digits := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsDigit(r) })
	if digits > 0 && (line[digits] == '.' || line[digits] == ')') {
		line = strings.TrimSpace(line[digits+1:])
	}

	return strings.Trim(line, "\"'`")
}
