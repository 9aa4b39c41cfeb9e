package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func unlimited() SearchOption {
	return WithLimiter(rate.NewLimiter(rate.Inf, 1))
}

func TestTavilySearch(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a.example/","content":"alpha"},
			{"title":"B","url":"https://b.example/","content":"beta"},
			{"title":"C","url":"https://c.example/","content":"gamma"}]}`))
	}))
	defer server.Close()

	s, err := NewTavily("key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewTavily() error = %v", err)
	}

	results, err := s.Search(context.Background(), "solar", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].URL != "https://a.example/" || results[0].Snippet != "alpha" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if body["query"] != "solar" || body["max_results"] != float64(2) || body["search_depth"] != "basic" {
		t.Errorf("request body = %v", body)
	}
}

func TestTavilyRequiresKey(t *testing.T) {
	if _, err := NewTavily(" "); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestBraveSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/res/v1/web/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("missing subscription token")
		}
		if r.URL.Query().Get("q") != "wind power" || r.URL.Query().Get("count") != "3" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"web":{"results":[{"title":"Wind","url":"https://wind.example/","description":"turbines"}]}}`))
	}))
	defer server.Close()

	s, err := NewBrave("brave-key", WithBaseURL(server.URL), unlimited())
	if err != nil {
		t.Fatalf("NewBrave() error = %v", err)
	}

	results, err := s.Search(context.Background(), "wind power", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Title != "Wind" || results[0].Snippet != "turbines" {
		t.Errorf("results = %+v", results)
	}
}

func TestBraveRateLimitedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Reset", "2, 1419704")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	s, _ := NewBrave("brave-key", WithBaseURL(server.URL), unlimited())
	_, err := s.Search(context.Background(), "q", 3)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !se.Transient() {
		t.Error("429 should be transient")
	}
	if se.RetryAfter.Seconds() != 2 {
		t.Errorf("RetryAfter = %v, want 2s", se.RetryAfter)
	}
}

const ddgPage = `<html><body><table>
<tr><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc" class='result-link'>The Go <b>Docs</b></a></td></tr>
<tr><td class='result-snippet'>Documentation for the Go language.</td></tr>
<tr><td><a rel="nofollow" href="https://pkg.go.dev/" class='result-link'>Go Packages</a></td></tr>
<tr><td class='result-snippet'>Package   index.</td></tr>
<tr><td><a href="https://duckduckgo.com/settings" class='result-link'>Settings</a></td></tr>
</table></body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/lite/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		r.ParseForm()
		if r.PostForm.Get("q") != "golang" {
			t.Errorf("q = %q", r.PostForm.Get("q"))
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(ddgPage))
	}))
	defer server.Close()

	s := NewDuckDuckGo(WithBaseURL(server.URL), unlimited())
	results, err := s.Search(context.Background(), "golang", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2: %+v", len(results), results)
	}
	if results[0].URL != "https://go.dev/doc/" || results[0].Title != "The Go Docs" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[0].Snippet != "Documentation for the Go language." {
		t.Errorf("results[0].Snippet = %q", results[0].Snippet)
	}
	if results[1].URL != "https://pkg.go.dev/" || results[1].Snippet != "Package index." {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestNewSearcher(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{"tavily", "k", "tavily", false},
		{"Brave", "k", "brave", false},
		{"ddg", "", "duckduckgo", false},
		{"", "", "duckduckgo", false},
		{"tavily", "", "", true},
		{"bing", "k", "", true},
	}

	for _, tt := range tests {
		s, err := NewSearcher(tt.name, tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewSearcher(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && s.Name() != tt.want {
			t.Errorf("NewSearcher(%q).Name() = %q, want %q", tt.name, s.Name(), tt.want)
		}
	}
}
