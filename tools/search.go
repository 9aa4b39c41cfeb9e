// Web search adapters.
//
// Information Hiding:
// - Provider endpoints and wire formats hidden
// - Rate limiting per provider hidden
// - Provider responses mapped to model.SourceDescriptor

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/richinex/sleuth/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"
)

// Searcher finds candidate sources for a query.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]model.SourceDescriptor, error)
}

const defaultSearchTimeout = 15 * time.Second

// SearchOption configures a search adapter.
type SearchOption func(*searchOptions)

type searchOptions struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	depth   string
}

// WithBaseURL points the adapter at another endpoint (used in tests).
func WithBaseURL(u string) SearchOption {
	return func(o *searchOptions) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithSearchClient replaces the HTTP client.
func WithSearchClient(c *http.Client) SearchOption {
	return func(o *searchOptions) { o.client = c }
}

// WithLimiter replaces the provider's shared rate limiter.
func WithLimiter(l *rate.Limiter) SearchOption {
	return func(o *searchOptions) { o.limiter = l }
}

// WithSearchDepth sets Tavily's search_depth (basic or advanced).
func WithSearchDepth(depth string) SearchOption {
	return func(o *searchOptions) { o.depth = depth }
}

func applySearchOptions(defaultBase string, opts []SearchOption) searchOptions {
	o := searchOptions{
		baseURL: defaultBase,
		client:  &http.Client{Timeout: defaultSearchTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SupportedSearchers returns the names accepted by NewSearcher.
func SupportedSearchers() []string {
	return []string{"tavily", "brave", "duckduckgo"}
}

// NewSearcher creates a search adapter by name.
func NewSearcher(name, apiKey string, opts ...SearchOption) (Searcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tavily":
		return NewTavily(apiKey, opts...)
	case "brave":
		return NewBrave(apiKey, opts...)
	case "duckduckgo", "ddg", "":
		return NewDuckDuckGo(opts...), nil
	default:
		return nil, fmt.Errorf("unknown search provider: %q (supported: %s)",
			name, strings.Join(SupportedSearchers(), ", "))
	}
}

// ============================================================================
// Tavily
// ============================================================================

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey string
	opts   searchOptions
}

// NewTavily creates a Tavily adapter. An API key is required.
func NewTavily(apiKey string, opts ...SearchOption) (*Tavily, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}
	o := applySearchOptions("https://api.tavily.com", opts)
	if o.depth == "" {
		o.depth = "basic"
	}
	return &Tavily{apiKey: apiKey, opts: o}, nil
}

// Name returns "tavily".
func (t *Tavily) Name() string { return "tavily" }

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]model.SourceDescriptor, error) {
	payload, err := json.Marshal(map[string]any{
		"api_key":      t.apiKey,
		"query":        query,
		"max_results":  maxResults,
		"search_depth": t.opts.depth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tavily request: %w", err)
	}

	if t.opts.limiter != nil {
		if err := t.opts.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create tavily request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError("tavily", resp)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, Permanent(fmt.Errorf("failed to decode tavily response: %w", err))
	}

	results := make([]model.SourceDescriptor, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, model.SourceDescriptor{URL: r.URL, Title: r.Title, Snippet: r.Content})
	}
	return limitResults(results, maxResults), nil
}

// ============================================================================
// Brave
// ============================================================================

var (
	braveLimitersMu sync.Mutex
	braveLimiters   = map[string]*rate.Limiter{}
)

// braveLimiterFor returns the limiter shared by every adapter using apiKey.
// Brave allows one request per second per key.
func braveLimiterFor(apiKey string) *rate.Limiter {
	braveLimitersMu.Lock()
	defer braveLimitersMu.Unlock()
	l, ok := braveLimiters[apiKey]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Second), 1)
		braveLimiters[apiKey] = l
	}
	return l
}

// Brave uses the Brave Search API.
type Brave struct {
	apiKey string
	opts   searchOptions
}

// NewBrave creates a Brave adapter. An API key is required.
func NewBrave(apiKey string, opts ...SearchOption) (*Brave, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	o := applySearchOptions("https://api.search.brave.com", opts)
	if o.limiter == nil {
		o.limiter = braveLimiterFor(apiKey)
	}
	return &Brave{apiKey: apiKey, opts: o}, nil
}

// Name returns "brave".
func (b *Brave) Name() string { return "brave" }

// Search executes a Brave web query.
func (b *Brave) Search(ctx context.Context, query string, maxResults int) ([]model.SourceDescriptor, error) {
	params := url.Values{}
	params.Set("q", query)
	if maxResults > 0 {
		params.Set("count", strconv.Itoa(maxResults))
	}

	if err := b.opts.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.baseURL+"/res/v1/web/search?"+params.Encode(), nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create brave request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		se := newStatusError("brave", resp)
		if se.RetryAfter == 0 {
			se.RetryAfter = braveResetDelay(resp.Header)
		}
		return nil, se
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, Permanent(fmt.Errorf("failed to decode brave response: %w", err))
	}

	results := make([]model.SourceDescriptor, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, model.SourceDescriptor{URL: r.URL, Title: r.Title, Snippet: r.Description})
	}
	return limitResults(results, maxResults), nil
}

// braveResetDelay reads the smallest value of X-RateLimit-Reset ("1, 1419704").
func braveResetDelay(h http.Header) time.Duration {
	minReset := -1
	for _, part := range strings.Split(h.Get("X-RateLimit-Reset"), ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			continue
		}
		if minReset < 0 || n < minReset {
			minReset = n
		}
	}
	if minReset <= 0 {
		return 0
	}
	return time.Duration(minReset) * time.Second
}

// ============================================================================
// DuckDuckGo
// ============================================================================

// ddgLimiter paces all DuckDuckGo adapters in the process to one query per second.
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

// DuckDuckGo scrapes DuckDuckGo's lite HTML interface. No API key is needed.
type DuckDuckGo struct {
	opts searchOptions
}

// NewDuckDuckGo creates a DuckDuckGo adapter.
func NewDuckDuckGo(opts ...SearchOption) *DuckDuckGo {
	o := applySearchOptions("https://lite.duckduckgo.com", opts)
	if o.limiter == nil {
		o.limiter = ddgLimiter
	}
	return &DuckDuckGo{opts: o}
}

// Name returns "duckduckgo".
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search posts the query form and parses result links from the page.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]model.SourceDescriptor, error) {
	if strings.TrimSpace(query) == "" {
		return nil, Permanent(errors.New("duckduckgo: query is empty"))
	}

	if err := d.opts.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.opts.baseURL+"/lite/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create duckduckgo request: %w", err))
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError("duckduckgo", resp)
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to parse duckduckgo page: %w", err))
	}
	return limitResults(parseDuckDuckGoResults(root), maxResults), nil
}

// parseDuckDuckGoResults pairs each result-link anchor with the next result-snippet cell.
func parseDuckDuckGoResults(root *html.Node) []model.SourceDescriptor {
	var results []model.SourceDescriptor

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.DataAtom == atom.A && hasClass(n, "result-link"):
				href := resolveDuckDuckGoHref(attr(n, "href"))
				title := strings.Join(strings.Fields(textOf(n)), " ")
				if href != "" && title != "" {
					results = append(results, model.SourceDescriptor{URL: href, Title: title})
				}
				return
			case n.DataAtom == atom.Td && hasClass(n, "result-snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = strings.Join(strings.Fields(textOf(n)), " ")
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

// resolveDuckDuckGoHref unwraps "//duckduckgo.com/l/?uddg=<target>" redirect links.
func resolveDuckDuckGoHref(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func limitResults(results []model.SourceDescriptor, n int) []model.SourceDescriptor {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}
