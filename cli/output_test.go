package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/richinex/sleuth/cache"
	"github.com/richinex/sleuth/model"
	"github.com/richinex/sleuth/orchestration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleReport() *orchestration.Report {
	return &orchestration.Report{
		RunID:  "run-1",
		Query:  "how do tides work",
		State:  orchestration.StateDone,
		Answer: "Tides follow the moon [1].",
		Citations: []model.Citation{
			{SubQuestionID: 0, URL: "https://a.example/moon", Title: "Moon", Rank: 0},
			{SubQuestionID: 1, URL: "https://b.example/sun", Rank: 0},
		},
		Skipped: []model.SkippedSource{
			{SubQuestionID: 1, URL: "https://c.example/gone", Reason: model.ReasonNotFound},
		},
		Stats:    orchestration.Stats{SubQuestions: 2, Sources: 3, Extracted: 2, Skipped: 1},
		Duration: 1500 * time.Millisecond,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"TEXT", FormatText, false},
		{"md", FormatMarkdown, false},
		{"json", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatText, RenderOptions{}))

	out := buf.String()
	assert.Contains(t, out, "Tides follow the moon [1].")
	assert.Contains(t, out, "[1] Moon")
	assert.Contains(t, out, "[2] https://b.example/sun")
	assert.Contains(t, out, "https://c.example/gone (not_found)")
	assert.NotContains(t, out, "sub-questions,")
}

func TestRenderTextOmitAnswer(t *testing.T) {
	report := sampleReport()
	report.Analysis = &model.AnalysisResult{
		OriginalQuery: report.Query,
		SubQuestions: []model.SubQuestion{
			{ID: 0, Text: "What pulls the oceans?", SearchQuery: "tide gravity", Reasoning: "tides need a force"},
			{ID: 1, Text: "What does the sun add?", SearchQuery: "solar tide"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, report, FormatText, RenderOptions{OmitAnswer: true, Verbose: true}))

	out := buf.String()
	assert.NotContains(t, out, "Tides follow the moon")
	assert.Contains(t, out, "1. What pulls the oceans?")
	assert.Contains(t, out, "search: tide gravity")
	assert.Contains(t, out, "why: tides need a force")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "2 sub-questions, 3 sources, 2 extracted, 1 skipped")
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatMarkdown, RenderOptions{}))

	out := buf.String()
	assert.Contains(t, out, "# how do tides work")
	assert.Contains(t, out, "1. [Moon](https://a.example/moon)")
	assert.Contains(t, out, "## Skipped sources")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatJSON, RenderOptions{}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Len(t, decoded["citations"], 2)
	assert.Len(t, decoded["skipped_sources"], 1)
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatYAML, RenderOptions{}))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "done", decoded["state"])
	assert.Equal(t, "how do tides work", decoded["query"])
}

func TestParseSkipCache(t *testing.T) {
	skip, err := parseSkipCache([]string{"search,content"})
	require.NoError(t, err)
	assert.Equal(t, orchestration.SkipCache{Search: true, Content: true}, skip)

	skip, err = parseSkipCache([]string{"analysis", "all"})
	require.NoError(t, err)
	assert.Equal(t, orchestration.SkipAll(), skip)

	skip, err = parseSkipCache(nil)
	require.NoError(t, err)
	assert.False(t, skip.Any())

	_, err = parseSkipCache([]string{"pages"})
	assert.Error(t, err)
}

func TestParseNamespaces(t *testing.T) {
	all, err := parseNamespaces(nil)
	require.NoError(t, err)
	assert.Equal(t, cache.Namespaces(), all)

	some, err := parseNamespaces([]string{"Search"})
	require.NoError(t, err)
	assert.Equal(t, []cache.Namespace{cache.NamespaceSearch}, some)

	_, err = parseNamespaces([]string{"bogus"})
	assert.Error(t, err)
}

func TestLoadSettingsFlagOverrides(t *testing.T) {
	t.Setenv("SLEUTH_CACHE_BACKEND", "")
	t.Setenv("SLEUTH_LOG_LEVEL", "")

	settings, err := loadSettings(Options{
		Provider:       "openai",
		SearchProvider: "brave",
		MaxSources:     6,
		CacheBackend:   "memory",
		Verbose:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "brave", settings.Search.Provider)
	assert.Equal(t, 6, settings.Research.MaxSources)
	assert.Equal(t, "memory", settings.Cache.Backend)
	assert.Equal(t, "debug", settings.Log.Level)
}

func TestLoadSettingsRejectsUnknownSearcher(t *testing.T) {
	_, err := loadSettings(Options{Provider: "openai", SearchProvider: "altavista"})
	assert.Error(t, err)
}
