// Package cache provides the namespaced, single-flight cache store used by
// every stage of a research run.
//
// Information Hiding:
// - Key derivation and input normalization hidden behind NewKey/URLKey
// - In-flight deduplication hidden behind GetOrCompute
// - Expiry evaluated against an injectable clock, independent of the backend
package cache

import (
	"fmt"
	"strings"
)

// Namespace partitions the key space per stage.
type Namespace string

const (
	// NamespaceAnalysis holds decomposed queries.
	NamespaceAnalysis Namespace = "analysis"
	// NamespaceSearch holds ranked source lists per search query.
	NamespaceSearch Namespace = "search"
	// NamespaceContent holds extracted page content, including failures.
	NamespaceContent Namespace = "content"
)

// Namespaces returns all namespaces in pipeline order.
func Namespaces() []Namespace {
	return []Namespace{NamespaceAnalysis, NamespaceSearch, NamespaceContent}
}

// String returns the namespace name.
func (n Namespace) String() string {
	return string(n)
}

// ParseNamespace parses a namespace name (case-insensitive).
func ParseNamespace(s string) (Namespace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "analysis":
		return NamespaceAnalysis, nil
	case "search":
		return NamespaceSearch, nil
	case "content":
		return NamespaceContent, nil
	default:
		return "", fmt.Errorf("unknown cache namespace: %q", s)
	}
}
