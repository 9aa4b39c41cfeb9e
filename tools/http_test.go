package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title> Solar Power </title><style>body { color: red }</style></head>
<body>
<header>Site header</header>
<nav><a href="/">Home</a></nav>
<article>
<h1>How solar panels work</h1>
<p>Photovoltaic   cells convert
sunlight into electricity.</p>
<script>var tracking = true;</script>
<p>Efficiency is around 20%.</p>
</article>
<footer>Copyright</footer>
</body>
</html>`

func TestHTTPFetcherExtractsText(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	doc, err := NewHTTPFetcher().Fetch(context.Background(), server.URL+"/solar")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if doc.Title != "Solar Power" {
		t.Errorf("Title = %q", doc.Title)
	}
	want := "How solar panels work\nPhotovoltaic cells convert sunlight into electricity.\nEfficiency is around 20%."
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
	for _, unwanted := range []string{"Site header", "Home", "tracking", "Copyright", "color: red"} {
		if strings.Contains(doc.Text, unwanted) {
			t.Errorf("Text contains boilerplate %q", unwanted)
		}
	}
	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Errorf("User-Agent = %q, want a browser UA", gotUA)
	}
}

func TestHTTPFetcherPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("just text"))
	}))
	defer server.Close()

	doc, err := NewHTTPFetcher().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if doc.Text != "just text" {
		t.Errorf("Text = %q", doc.Text)
	}
}

func TestHTTPFetcherErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/busy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tests := []struct {
		path      string
		kind      FetchErrorKind
		transient bool
	}{
		{"/missing", FetchNotFound, false},
		{"/pdf", FetchUnsupportedContentType, false},
		{"/busy", FetchHTTPStatus, true},
		{"/forbidden", FetchHTTPStatus, false},
	}

	fetcher := NewHTTPFetcher()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := fetcher.Fetch(context.Background(), server.URL+tt.path)
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", fe.Kind, tt.kind)
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient = %v, want %v", IsTransient(err), tt.transient)
			}
		})
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fetcher := NewHTTPFetcher(WithFetchTimeout(20 * time.Millisecond))
	_, err := fetcher.Fetch(context.Background(), server.URL)

	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != FetchTimeout {
		t.Fatalf("expected timeout FetchError, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("timeouts should be transient")
	}
}

func TestHTTPFetcherInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com/file", "not a url"} {
		_, err := NewHTTPFetcher().Fetch(context.Background(), raw)
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Kind != FetchInvalidURL {
			t.Errorf("Fetch(%q) error = %v, want invalid_url", raw, err)
		}
	}
}
