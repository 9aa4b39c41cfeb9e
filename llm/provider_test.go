// Error handling tests for LLM providers: status classification and no API key leaks.
package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
)

func openAIErrorServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"error":{"message":"request failed","type":"server_error","code":null}}`))
	}))
	t.Cleanup(server.Close)
	return server
}

// TestOpenAICompatibleStatusClassification verifies SDK errors surface as *APIError
func TestOpenAICompatibleStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		server := openAIErrorServer(t, tt.status)
		provider := NewOpenAICompatibleProvider("test", server.URL+"/v1", "sk-test", "model", 100, 0.7)

		_, err := provider.Chat(context.Background(), []ChatMessage{UserMessage("test")})
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: expected *APIError, got %T: %v", tt.status, err, err)
		}
		if apiErr.StatusCode != tt.status {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
		}
		if apiErr.Provider != "test" {
			t.Errorf("Provider = %q, want %q", apiErr.Provider, "test")
		}
		if apiErr.Transient() != tt.transient {
			t.Errorf("status %d: Transient() = %v, want %v", tt.status, apiErr.Transient(), tt.transient)
		}
	}
}

// TestOpenAIErrorNoAPIKeyLeak verifies OpenAI-compatible errors don't contain API keys
func TestOpenAIErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-test-invalid-key-12345xyz"
	server := openAIErrorServer(t, http.StatusUnauthorized)
	provider := NewOpenAICompatibleProvider("openai", server.URL+"/v1", testKey, "gpt-4o", 100, 0.7)

	_, err := provider.Chat(context.Background(), []ChatMessage{UserMessage("test")})
	if err == nil {
		t.Fatal("expected error")
	}

	errStr := err.Error()
	if strings.Contains(errStr, testKey) {
		t.Errorf("error message leaked API key: %v", errStr)
	}
	if strings.Contains(errStr, "Authorization:") {
		t.Errorf("error exposed Authorization header: %v", errStr)
	}
}

// TestStreamErrorNoAPIKeyLeak verifies streaming errors don't leak API keys
func TestStreamErrorNoAPIKeyLeak(t *testing.T) {
	testKey := "sk-test-invalid-key-12345xyz"
	server := openAIErrorServer(t, http.StatusTooManyRequests)
	provider := NewOpenAICompatibleProvider("openai", server.URL+"/v1", testKey, "gpt-4o", 100, 0.7)

	chunks := make(chan string, 10)
	_, err := provider.StreamChat(context.Background(), []ChatMessage{UserMessage("test")}, chunks)
	if err == nil {
		t.Fatal("expected error")
	}

	if strings.Contains(err.Error(), testKey) {
		t.Errorf("stream error message leaked API key: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Transient() {
		t.Errorf("expected transient *APIError, got %v", err)
	}
}

// TestAnthropicStatusClassification verifies Anthropic errors are wrapped and not retried by the SDK
func TestAnthropicStatusClassification(t *testing.T) {
	testKey := "sk-ant-REDACTED"
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(testKey, ModelAnthropicClaudeSonnet4, 100, 0.7, option.WithBaseURL(server.URL+"/"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{UserMessage("test")})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 529 || !apiErr.Transient() {
		t.Errorf("expected transient *APIError with status 529, got %v", err)
	}
	if strings.Contains(err.Error(), testKey) {
		t.Errorf("Anthropic error message leaked API key: %v", err)
	}
	if calls != 1 {
		t.Errorf("server saw %d requests, want 1 (SDK retries must be off)", calls)
	}
}

// TestGeminiInitErrorPreserved verifies Gemini returns initialization errors
func TestGeminiInitErrorPreserved(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	provider := NewGeminiProvider("", "gemini-2.5-flash", 100, 0.7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := provider.Chat(ctx, []ChatMessage{
		{Role: "user", Content: "test"},
	})

	if err == nil {
		t.Error("Expected initialization error to be returned, got nil")
		return
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "failed to initialize") {
		t.Errorf("Expected initialization error, got: %v", errStr)
	}
}

// TestWrapErrorLeavesTransportErrors verifies errors without a status pass through
func TestWrapErrorLeavesTransportErrors(t *testing.T) {
	err := wrapError("openai", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error to pass through, got %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("transport errors must not become *APIError")
	}
}

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderType
	}{
		{"openai", ProviderOpenAI},
		{"Claude", ProviderAnthropic},
		{"deepseek", ProviderDeepSeek},
		{"google", ProviderGemini},
		{"deepinfra", ProviderDeepInfra},
		{"llama", ProviderDeepInfra},
	}

	for _, tt := range tests {
		got, err := ParseProviderType(tt.in)
		if err != nil {
			t.Errorf("ParseProviderType(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProviderType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseProviderType("mistral"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestDeepInfraDefaults(t *testing.T) {
	if ProviderDeepInfra.EnvVar() != "DEEPINFRA_API_TOKEN" {
		t.Errorf("EnvVar() = %q", ProviderDeepInfra.EnvVar())
	}
	provider, err := ProviderDeepInfra.APIKey("token")
	if err != nil {
		t.Fatalf("APIKey() error = %v", err)
	}
	if provider.Name() != "deepinfra" || provider.Model() != ModelDeepInfraLlama3 {
		t.Errorf("provider = %s/%s", provider.Name(), provider.Model())
	}
}
