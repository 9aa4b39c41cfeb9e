// HTTP page fetcher.
//
// Information Hiding:
// - HTTP client configuration hidden
// - HTML parsing and boilerplate removal hidden
// - Transport failures classified into FetchError kinds

package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// DefaultFetchTimeout bounds a single page request.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes = 5 << 20

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Document is the text content of a fetched page.
type Document struct {
	URL         string
	Title       string
	Text        string
	ContentType string
}

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

const (
	FetchTimeout                FetchErrorKind = "timeout"
	FetchNotFound               FetchErrorKind = "not_found"
	FetchUnsupportedContentType FetchErrorKind = "unsupported_content_type"
	FetchParse                  FetchErrorKind = "parse"
	FetchNetwork                FetchErrorKind = "network"
	FetchHTTPStatus             FetchErrorKind = "http_status"
	FetchInvalidURL             FetchErrorKind = "invalid_url"
)

// FetchError describes why a page could not be fetched.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: %s (http %d)", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient is true for timeouts, rate limiting and server errors.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case FetchTimeout:
		return true
	case FetchHTTPStatus:
		return isTransientStatus(e.StatusCode)
	default:
		return false
	}
}

// HTTPFetcher retrieves pages over HTTP and reduces them to text.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetchClient replaces the HTTP client.
func WithFetchClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithFetchTimeout sets the per-request timeout.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) { f.client.Timeout = d }
}

// WithUserAgent overrides the browser User-Agent.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// WithMaxBodyBytes caps the bytes read from a response.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) { f.maxBytes = n }
}

// NewHTTPFetcher creates a fetcher with a 10 second timeout.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: DefaultFetchTimeout},
		userAgent: browserUserAgent,
		maxBytes:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL and returns its readable text.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	target := strings.TrimSpace(rawURL)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = errors.New("only absolute http(s) URLs are supported")
		}
		return Document{}, &FetchError{Kind: FetchInvalidURL, URL: target, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Document{}, &FetchError{Kind: FetchInvalidURL, URL: target, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, &FetchError{Kind: classifyTransportError(err), URL: target, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Document{}, &FetchError{Kind: FetchNotFound, URL: target, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Document{}, &FetchError{Kind: FetchHTTPStatus, URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Document{}, &FetchError{Kind: classifyTransportError(err), URL: target, Err: err}
	}

	mediaType := mediaTypeOf(resp.Header.Get("Content-Type"), body)
	doc := Document{URL: target, ContentType: mediaType}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		title, text, err := htmlToText(body)
		if err != nil {
			return Document{}, &FetchError{Kind: FetchParse, URL: target, Err: err}
		}
		doc.Title = title
		doc.Text = text
	case strings.HasPrefix(mediaType, "text/"):
		doc.Text = string(body)
	default:
		return Document{}, &FetchError{
			Kind: FetchUnsupportedContentType,
			URL:  target,
			Err:  fmt.Errorf("content type %q", mediaType),
		}
	}

	return doc, nil
}

func classifyTransportError(err error) FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FetchTimeout
	}
	return FetchNetwork
}

// mediaTypeOf parses the Content-Type header, sniffing the body when it is missing.
func mediaTypeOf(header string, body []byte) string {
	if header == "" {
		header = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
	}
	return mediaType
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Template: true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true,
}

// htmlToText returns the page title and the visible text, one block per line.
func htmlToText(body []byte) (string, string, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}

	var (
		title string
		sb    strings.Builder
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Title && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
			if skippedElements[n.DataAtom] {
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(strings.Join(strings.Fields(n.Data), " "))
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			sb.WriteByte('\n')
		}
	}
	walk(root)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}
	return title, strings.Join(lines, "\n"), nil
}
