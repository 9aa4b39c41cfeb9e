package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// transient is implemented by errors that know whether a retry may succeed.
type transient interface {
	Transient() bool
}

// IsTransient reports whether err is worth retrying: timeouts, rate limits and
// server-side failures. Cancellation and errors wrapped with Permanent never are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// StatusError is a non-success HTTP response from an external service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, e.Body)
}

// Transient is true for rate limiting and server errors.
func (e *StatusError) Transient() bool {
	return isTransientStatus(e.StatusCode)
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

const maxErrorBody = 512

// newStatusError builds a StatusError from resp, reading a bounded prefix of the body.
func newStatusError(service string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func retryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}
