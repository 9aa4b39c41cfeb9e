package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// APIError is a provider API failure that carried an HTTP status.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Transient reports whether the request may succeed if repeated:
// timeouts, rate limits and server errors (including Anthropic's 529 overload).
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// wrapError attaches the HTTP status of SDK errors. Errors without a status
// (transport failures, cancellation) are returned unchanged.
func wrapError(provider string, err error) error {
	if code := statusCodeOf(err); code != 0 {
		return &APIError{Provider: provider, StatusCode: code, Err: err}
	}
	return err
}

func statusCodeOf(err error) int {
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return oaiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var genErr genai.APIError
	if errors.As(err, &genErr) {
		return genErr.Code
	}
	var genPtrErr *genai.APIError
	if errors.As(err, &genPtrErr) {
		return genPtrErr.Code
	}
	return 0
}
