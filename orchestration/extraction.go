// Extraction stage.
//
// Information Hiding:
// - Failure classification hidden (fetch errors become FailureReason values)
// - Text cleaning and truncation hidden
// - Failed outcomes cached with their own, shorter TTL

package orchestration

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/richinex/sleuth/cache"
	"github.com/richinex/sleuth/internal/metrics"
	"github.com/richinex/sleuth/model"
	"github.com/richinex/sleuth/tools"
	"go.uber.org/zap"
)

// TruncationMarker is appended to text cut at the content bound.
const TruncationMarker = "... [Content truncated]"

// ExtractionStage fetches and cleans one page, cached under the content namespace.
// Failures are values, not errors.
type ExtractionStage struct {
	env     stageEnv
	fetcher Fetcher
}

// NewExtractionStage creates an extraction stage.
func NewExtractionStage(store *cache.Store, fetcher Fetcher, cfg Config, gate *Gate, logger *zap.Logger) *ExtractionStage {
	return &ExtractionStage{env: newStageEnv(store, cfg, gate, logger), fetcher: fetcher}
}

// Run returns the content for src and whether it came from the cache.
// A cached failure is returned like a cached success unless refresh is set.
// The only error is cancellation of ctx.
func (s *ExtractionStage) Run(ctx context.Context, src model.SourceDescriptor, refresh bool) (model.ExtractedContent, bool, error) {
	defer observeStage(StageExtraction, time.Now())

	key := cache.URLKey(src.URL)
	content, res, err := cache.GetOrComputeJSON(ctx, s.env.store, cache.NamespaceContent, key, refresh,
		func(ctx context.Context) (model.ExtractedContent, time.Duration, error) {
			c, err := s.extract(ctx, src.URL)
			if err != nil {
				return model.ExtractedContent{}, 0, err
			}
			if !c.OK() {
				return c, s.env.cfg.TTL.FailedContent, nil
			}
			return c, s.env.cfg.TTL.Content, nil
		})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.ExtractedContent{}, false, ctxErr
		}
		// The store failed, not the page. Serve this run without caching.
		s.env.logger.Warn("content cache unavailable, fetching directly",
			zap.String("url", src.URL),
			zap.Error(err))
		content, err = s.extract(ctx, src.URL)
		if err != nil {
			return model.ExtractedContent{}, false, err
		}
		res = cache.Result{}
	}

	if !res.Hit {
		metrics.ExtractionOutcomes.WithLabelValues(string(content.Status), string(content.Reason)).Inc()
	}
	if !content.OK() {
		s.env.logger.Debug("extraction failed",
			zap.String("url", src.URL),
			zap.String("reason", string(content.Reason)),
			zap.Bool("cached", res.Hit))
	}
	return content, res.Hit, nil
}

// extract fetches url and turns any failure other than cancellation into a Failed value.
func (s *ExtractionStage) extract(ctx context.Context, url string) (model.ExtractedContent, error) {
	doc, err := tools.RetryValue(ctx, s.env.cfg.Retry, "fetch", func(ctx context.Context) (tools.Document, error) {
		return call(ctx, s.env.gate, "fetch", func(ctx context.Context) (tools.Document, error) {
			return s.fetcher.Fetch(ctx, url)
		})
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.ExtractedContent{}, ctxErr
		}
		return model.ExtractedContent{
			URL:    url,
			Status: model.StatusFailed,
			Reason: classifyFetchError(err),
			Detail: err.Error(),
		}, nil
	}

	text, truncated := CleanText(doc.Text, s.env.cfg.MaxContentChars)
	if text == "" {
		return model.ExtractedContent{
			URL:    url,
			Title:  doc.Title,
			Status: model.StatusFailed,
			Reason: model.ReasonParse,
			Detail: "page has no text content",
		}, nil
	}

	return model.ExtractedContent{
		URL:       url,
		Title:     doc.Title,
		Text:      text,
		Status:    model.StatusOK,
		Truncated: truncated,
	}, nil
}

// classifyFetchError maps a fetch failure to a reason.
func classifyFetchError(err error) model.FailureReason {
	var fe *tools.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case tools.FetchTimeout:
			return model.ReasonTimeout
		case tools.FetchNotFound, tools.FetchInvalidURL:
			return model.ReasonNotFound
		case tools.FetchUnsupportedContentType:
			return model.ReasonNonText
		case tools.FetchParse:
			return model.ReasonParse
		default:
			return model.ReasonNetwork
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ReasonTimeout
	}
	return model.ReasonNetwork
}

// CleanText trims every line, collapses runs of whitespace, drops empty
// lines and cuts the result to maxChars runes followed by TruncationMarker.
// maxChars <= 0 disables the cut.
func CleanText(text string, maxChars int) (string, bool) {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	cleaned := strings.Join(kept, "\n")

	if maxChars <= 0 || utf8.RuneCountInString(cleaned) <= maxChars {
		return cleaned, false
	}
	runes := []rune(cleaned)
	return string(runes[:maxChars]) + TruncationMarker, true
}
