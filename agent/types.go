// Package agent provides the LLM-backed research agents.
//
// Contains the wire types the models answer with.
package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// analysisResponse is the decoded decomposition reply.
type analysisResponse struct {
	SubQuestions  []analysisItem `json:"sub_questions"`
	SearchQueries []string       `json:"search_queries,omitempty"`
}

// UnmarshalJSON accepts the requested object shape, a bare array of items,
// and the older shape with a parallel "search_queries" list.
func (r *analysisResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &r.SubQuestions)
	}

	// Use an alias to avoid infinite recursion
	type responseAlias analysisResponse
	aux := &struct {
		Questions []analysisItem `json:"questions,omitempty"`
		*responseAlias
	}{
		responseAlias: (*responseAlias)(r),
	}
	if err := json.Unmarshal(trimmed, aux); err != nil {
		return err
	}
	if len(r.SubQuestions) == 0 {
		r.SubQuestions = aux.Questions
	}

	for i := range r.SubQuestions {
		if r.SubQuestions[i].SearchQuery == "" && i < len(r.SearchQueries) {
			r.SubQuestions[i].SearchQuery = r.SearchQueries[i]
		}
	}
	return nil
}

// analysisItem is one sub-question as the model phrases it.
type analysisItem struct {
	Question    string `json:"question"`
	Reasoning   string `json:"reasoning,omitempty"`
	SearchQuery string `json:"search_query,omitempty"`
}

// UnmarshalJSON accepts either a plain string or an object using any of the
// common key spellings.
func (it *analysisItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		it.Question = s
		return nil
	}

	var raw struct {
		Question    string `json:"question"`
		SubQuestion string `json:"sub_question"`
		Text        string `json:"text"`
		Reasoning   string `json:"reasoning"`
		SearchQuery string `json:"search_query"`
		Query       string `json:"query"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("sub-question must be a string or object: %w", err)
	}

	it.Question = firstNonEmpty(raw.Question, raw.SubQuestion, raw.Text)
	it.Reasoning = raw.Reasoning
	it.SearchQuery = firstNonEmpty(raw.SearchQuery, raw.Query)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
