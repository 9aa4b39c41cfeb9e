// Package json provides JSON extraction utilities for parsing LLM responses.
//
// LLMs often return JSON embedded in text, wrapped in markdown fences or
// followed by commentary. This package extracts and decodes the JSON part.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON finds and returns the JSON portion of a response string.
// It handles common LLM response patterns:
// 1. Pure JSON response - returns the full response
// 2. JSON inside a markdown code block (```json ... ```), anywhere in the text
// 3. JSON object or array embedded in text - the span from the first opening
//    bracket to the last matching closing bracket
//
// Limitations:
// - Uses simple bracket spans, not full JSON tokenizing
// - May fail if brackets appear in surrounding prose
func extractJSON(response string) (string, error) {
	candidates := []string{strings.TrimSpace(response)}
	if block, ok := fencedBlock(response); ok {
		candidates = append([]string{block}, candidates...)
	}

	for _, candidate := range candidates {
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		if span, ok := bracketSpan(candidate); ok {
			return span, nil
		}
	}

	// Create a preview for the error message
	preview := strings.TrimSpace(response)
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// fencedBlock returns the contents of the first markdown code block.
func fencedBlock(response string) (string, bool) {
	start := strings.Index(response, "```")
	if start == -1 {
		return "", false
	}
	rest := response[start+3:]
	// Drop the info string (e.g. "json") up to the end of the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

// bracketSpan tries the object and array spans, earliest opener first.
func bracketSpan(s string) (string, bool) {
	type pair struct{ open, close string }
	pairs := []pair{{"{", "}"}, {"[", "]"}}

	obj := strings.Index(s, "{")
	arr := strings.Index(s, "[")
	if arr != -1 && (obj == -1 || arr < obj) {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}

	for _, p := range pairs {
		start := strings.Index(s, p.open)
		end := strings.LastIndex(s, p.close)
		if start == -1 || end <= start {
			continue
		}
		span := s[start : end+1]
		if json.Valid([]byte(span)) {
			return span, true
		}
	}
	return "", false
}

// ExtractJSONFromResponse extracts and parses JSON from an LLM response.
// T may be a struct, map or slice.
//
// Returns the parsed value or an error if extraction fails.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractJSON extracts the JSON portion from a response string.
// Returns the raw JSON string suitable for further processing.
func ExtractJSON(response string) (string, error) {
	return extractJSON(response)
}
