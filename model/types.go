// Package model provides domain types shared across packages.
package model

// SubQuestion is one decomposed unit of a research query.
// ID is its 0-based position in the analysis and drives citation order.
type SubQuestion struct {
	ID          int    `json:"id" yaml:"id"`
	Text        string `json:"text" yaml:"text"`
	SearchQuery string `json:"search_query" yaml:"search_query"`
	Reasoning   string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// AnalysisResult is the decomposition of a query. Order is significant.
type AnalysisResult struct {
	OriginalQuery string        `json:"original_query" yaml:"original_query"`
	SubQuestions  []SubQuestion `json:"sub_questions" yaml:"sub_questions"`
}

// SourceDescriptor identifies a candidate page before its content is fetched.
type SourceDescriptor struct {
	URL     string `json:"url" yaml:"url"`
	Title   string `json:"title" yaml:"title"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Rank    int    `json:"rank" yaml:"rank"`
}

// SearchResult holds the ranked sources for one sub-question.
// URLs are unique within a result.
type SearchResult struct {
	SubQuestionID int                `json:"sub_question_id" yaml:"sub_question_id"`
	Query         string             `json:"query" yaml:"query"`
	Sources       []SourceDescriptor `json:"sources" yaml:"sources"`
}

// ExtractionStatus tags an extraction outcome.
type ExtractionStatus string

const (
	StatusOK     ExtractionStatus = "ok"
	StatusFailed ExtractionStatus = "failed"
)

// FailureReason classifies a failed extraction.
type FailureReason string

const (
	ReasonNetwork  FailureReason = "network"
	ReasonNonText  FailureReason = "non_text"
	ReasonParse    FailureReason = "parse"
	ReasonTimeout  FailureReason = "timeout"
	ReasonNotFound FailureReason = "not_found"
)

// ExtractedContent is the outcome of fetching and cleaning one page.
// Failed values are cached like successful ones.
type ExtractedContent struct {
	URL       string           `json:"url" yaml:"url"`
	Title     string           `json:"title,omitempty" yaml:"title,omitempty"`
	Text      string           `json:"text,omitempty" yaml:"text,omitempty"`
	Status    ExtractionStatus `json:"status" yaml:"status"`
	Reason    FailureReason    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Detail    string           `json:"detail,omitempty" yaml:"detail,omitempty"`
	Truncated bool             `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// OK reports whether the extraction succeeded.
func (c ExtractedContent) OK() bool {
	return c.Status == StatusOK
}

// Evidence pairs a source with its successfully extracted content.
type Evidence struct {
	Source  SourceDescriptor `json:"source" yaml:"source"`
	Content ExtractedContent `json:"content" yaml:"content"`
}

// SkippedSource records a source that contributed no content.
type SkippedSource struct {
	SubQuestionID int           `json:"sub_question_id" yaml:"sub_question_id"`
	URL           string        `json:"url" yaml:"url"`
	Title         string        `json:"title,omitempty" yaml:"title,omitempty"`
	Reason        FailureReason `json:"reason" yaml:"reason"`
	Detail        string        `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// CorpusSection is the evidence gathered for one sub-question, in rank order.
type CorpusSection struct {
	SubQuestion SubQuestion `json:"sub_question" yaml:"sub_question"`
	Evidence    []Evidence  `json:"evidence" yaml:"evidence"`
}

// Corpus is the aggregate evidence for one run.
// Sections are indexed by sub-question ID.
type Corpus struct {
	Query    string          `json:"query" yaml:"query"`
	Sections []CorpusSection `json:"sections" yaml:"sections"`
	Skipped  []SkippedSource `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Section returns the section for a sub-question ID.
func (c *Corpus) Section(id int) (CorpusSection, bool) {
	if id < 0 || id >= len(c.Sections) {
		return CorpusSection{}, false
	}
	return c.Sections[id], true
}

// Len returns the number of evidence items across all sections.
func (c *Corpus) Len() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Evidence)
	}
	return n
}

// Empty reports whether no sub-question produced any evidence.
func (c *Corpus) Empty() bool {
	return c.Len() == 0
}

// Evidence returns all evidence flattened in sub-question then rank order.
func (c *Corpus) Evidence() []Evidence {
	out := make([]Evidence, 0, c.Len())
	for _, s := range c.Sections {
		out = append(out, s.Evidence...)
	}
	return out
}

// Citations returns one citation per evidence item in sub-question then rank order.
func (c *Corpus) Citations() []Citation {
	out := make([]Citation, 0, c.Len())
	for _, s := range c.Sections {
		for _, e := range s.Evidence {
			out = append(out, Citation{
				SubQuestionID: s.SubQuestion.ID,
				URL:           e.Source.URL,
				Title:         e.Source.Title,
				Rank:          e.Source.Rank,
			})
		}
	}
	return out
}

// Citation references one source used in an answer.
type Citation struct {
	SubQuestionID int    `json:"sub_question_id" yaml:"sub_question_id"`
	URL           string `json:"url" yaml:"url"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Rank          int    `json:"rank" yaml:"rank"`
}

// Answer is the synthesized response.
type Answer struct {
	Text      string     `json:"text" yaml:"text"`
	Citations []Citation `json:"citations" yaml:"citations"`
}
