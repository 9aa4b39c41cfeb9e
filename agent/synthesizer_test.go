package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/richinex/sleuth/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCorpus() *model.Corpus {
	ok := func(url, text string) model.ExtractedContent {
		return model.ExtractedContent{URL: url, Text: text, Status: model.StatusOK}
	}
	return &model.Corpus{
		Query: "solar panels",
		Sections: []model.CorpusSection{
			{
				SubQuestion: model.SubQuestion{ID: 0, Text: "How do they work?"},
				Evidence: []model.Evidence{
					{Source: model.SourceDescriptor{URL: "https://a.example", Title: "A", Rank: 0}, Content: ok("https://a.example", strings.Repeat("x", 600))},
					{Source: model.SourceDescriptor{URL: "https://b.example", Title: "B", Rank: 2}, Content: ok("https://b.example", "short text")},
				},
			},
			{
				SubQuestion: model.SubQuestion{ID: 1, Text: "What do they cost?"},
				Evidence: []model.Evidence{
					{Source: model.SourceDescriptor{URL: "https://c.example", Title: "C", Rank: 0}, Content: ok("https://c.example", "cost data")},
				},
			},
		},
		Skipped: []model.SkippedSource{
			{SubQuestionID: 0, URL: "https://broken.example", Reason: model.ReasonTimeout},
		},
	}
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(sampleCorpus(), 500)

	assert.Contains(t, got, "Main Research Query: solar panels")
	assert.Contains(t, got, "- How do they work?\n- What do they cost?\n")
	assert.Contains(t, got, "Source 1: A\nURL: https://a.example\nContent snippet: "+strings.Repeat("x", 500)+"...\n")
	assert.Contains(t, got, "Source 2: B\nURL: https://b.example\nContent snippet: short text\n")
	assert.Contains(t, got, "Source 3: C\n")
	assert.Contains(t, got, "- https://broken.example (timeout)")
	assert.NotContains(t, got, strings.Repeat("x", 501))
}

func TestExcerptCountsRunes(t *testing.T) {
	assert.Equal(t, "ééé...", excerpt("éééé", 3))
	assert.Equal(t, "éé", excerpt("éé", 3))
}

func TestSynthesize(t *testing.T) {
	provider := &fakeProvider{replies: []string{" Panels convert light [1]. \n"}}

	answer, err := NewSynthesizer(provider, DefaultConfig()).Synthesize(context.Background(), sampleCorpus())
	require.NoError(t, err)

	assert.Equal(t, "Panels convert light [1].", answer.Text)
	require.Len(t, answer.Citations, 3)
	assert.Equal(t, "https://a.example", answer.Citations[0].URL)
	assert.Equal(t, "https://b.example", answer.Citations[1].URL)
	assert.Equal(t, 1, answer.Citations[2].SubQuestionID)

	require.Len(t, provider.prompts, 1)
	assert.Equal(t, "system", provider.prompts[0][0].Role)
	assert.Contains(t, provider.prompts[0][0].Content, "bracketed number")
}

func TestSynthesizeStreams(t *testing.T) {
	provider := &fakeProvider{chunks: []string{"Panels ", "work ", "[1]."}}
	chunks := make(chan string, 8)

	answer, err := NewSynthesizer(provider, DefaultConfig(), WithStream(chunks)).
		Synthesize(context.Background(), sampleCorpus())
	require.NoError(t, err)
	close(chunks)

	var streamed []string
	for c := range chunks {
		streamed = append(streamed, c)
	}
	assert.Equal(t, []string{"Panels ", "work ", "[1]."}, streamed)
	assert.Equal(t, "Panels work [1].", answer.Text)
}
