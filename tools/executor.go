// Retry executor for external calls.
//
// Information Hiding:
// - Backoff algorithm hidden
// - Error classification logic hidden
// - Retry accounting (metrics) hidden

package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/richinex/sleuth/internal/metrics"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier  float64       `json:"multiplier" yaml:"multiplier" mapstructure:"multiplier"`
}

// DefaultRetryPolicy returns 3 attempts with exponential backoff from 200ms, capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
	}
}

// NoRetry runs an operation exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// Validate checks the policy for nonsensical values.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1, got %v", p.Multiplier)
	}
	return nil
}

// Backoff returns the wait before the retry that follows the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}

	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(delay) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Retry runs fn until it succeeds, fails permanently, or the attempt budget is spent.
// Waits between attempts observe ctx. The last error is returned.
func Retry(ctx context.Context, policy RetryPolicy, op string, fn func(ctx context.Context) error) error {
	_, err := RetryValue(ctx, policy, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, policy RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt >= maxAttempts || !IsTransient(err) {
			if attempt > 1 {
				return zero, fmt.Errorf("%s failed after %d attempts: %w", op, attempt, err)
			}
			return zero, err
		}

		wait := policy.Backoff(attempt)
		if hint := retryAfter(err); hint > wait {
			wait = hint
			if policy.MaxDelay > 0 && wait > policy.MaxDelay {
				wait = policy.MaxDelay
			}
		}

		metrics.RetryAttempts.WithLabelValues(op).Inc()
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
}
