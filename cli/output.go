// Report rendering.
//
// Information Hiding:
// - Output format selection hidden
// - Text layout of answers, citations and skipped sources hidden

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/richinex/sleuth/orchestration"
	"gopkg.in/yaml.v3"
)

// Format selects how a report is printed.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat parses an output format (case-insensitive). Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format: %q (supported: text, markdown, json, yaml)", s)
	}
}

// RenderOptions tunes text rendering.
type RenderOptions struct {
	OmitAnswer bool // the answer was already streamed
	Verbose    bool // include sub-questions and run stats
}

// Render writes report to w in the given format.
func Render(w io.Writer, report *orchestration.Report, format Format, opts RenderOptions) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, renderMarkdown(report))
		return err
	default:
		_, err := io.WriteString(w, renderText(report, opts))
		return err
	}
}

func renderText(report *orchestration.Report, opts RenderOptions) string {
	var sb strings.Builder

	if report.Answer != "" && !opts.OmitAnswer {
		sb.WriteString(report.Answer)
		sb.WriteString("\n")
	}

	if report.Analysis != nil && len(report.Analysis.SubQuestions) > 0 {
		sb.WriteString("\nResearch process:\n")
		for _, sq := range report.Analysis.SubQuestions {
			fmt.Fprintf(&sb, "  %d. %s\n", sq.ID+1, sq.Text)
			if opts.Verbose {
				fmt.Fprintf(&sb, "     search: %s\n", sq.SearchQuery)
			}
			if sq.Reasoning != "" {
				fmt.Fprintf(&sb, "     why: %s\n", sq.Reasoning)
			}
		}
	}

	if len(report.Citations) > 0 {
		sb.WriteString("\nSources:\n")
		for i, c := range report.Citations {
			fmt.Fprintf(&sb, "  [%d] %s\n      %s\n", i+1, citationTitle(c.Title, c.URL), c.URL)
		}
	}

	if len(report.Skipped) > 0 {
		sb.WriteString("\nSkipped:\n")
		for _, s := range report.Skipped {
			fmt.Fprintf(&sb, "  - %s (%s)\n", s.URL, s.Reason)
		}
	}

	if len(report.FailedSearches) > 0 {
		sb.WriteString("\nFailed searches:\n")
		for _, f := range report.FailedSearches {
			fmt.Fprintf(&sb, "  - %q: %s\n", f.Query, f.Error)
		}
	}

	if opts.Verbose {
		st := report.Stats
		fmt.Fprintf(&sb, "\n(%d sub-questions, %d sources, %d extracted, %d skipped, cache %d hit / %d miss, %s)\n",
			st.SubQuestions, st.Sources, st.Extracted, st.Skipped, st.CacheHits, st.CacheMisses,
			report.Duration.Round(time.Millisecond))
	}
	return sb.String()
}

func renderMarkdown(report *orchestration.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", report.Query)
	if report.Answer != "" {
		sb.WriteString(report.Answer)
		sb.WriteString("\n")
	}

	if len(report.Citations) > 0 {
		sb.WriteString("\n## Sources\n\n")
		for i, c := range report.Citations {
			fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, citationTitle(c.Title, c.URL), c.URL)
		}
	}

	if len(report.Skipped) > 0 {
		sb.WriteString("\n## Skipped sources\n\n")
		for _, s := range report.Skipped {
			fmt.Fprintf(&sb, "- <%s> (%s)\n", s.URL, s.Reason)
		}
	}
	return sb.String()
}

func citationTitle(title, url string) string {
	if title == "" {
		return url
	}
	return title
}
