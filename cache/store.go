package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richinex/sleuth/internal/logging"
	"github.com/richinex/sleuth/internal/metrics"
	"github.com/richinex/sleuth/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces a value on cache miss.
// A non-zero TTL overrides the namespace default for the stored entry.
// Returned errors are passed to every waiting caller and are never stored.
type ComputeFunc func(ctx context.Context) ([]byte, time.Duration, error)

// Result describes where a value came from.
type Result struct {
	Value  []byte
	Hit    bool // served from storage without computing
	Shared bool // computed by a concurrent caller for the same key
}

// Store is a namespaced cache over a storage backend.
// Safe for concurrent use; it is the only shared mutable state of a run.
type Store struct {
	backend storage.Backend
	clock   Clock
	ttls    map[Namespace]time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for expiry.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithTTL sets the default TTL for a namespace. Zero means entries never expire.
func WithTTL(ns Namespace, ttl time.Duration) Option {
	return func(s *Store) { s.ttls[ns] = ttl }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

// New creates a store over backend.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		clock:   SystemClock{},
		ttls:    make(map[Namespace]time.Duration),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the live value for key, or false if absent or expired.
func (s *Store) Get(ctx context.Context, ns Namespace, key Key) ([]byte, bool, error) {
	entry, err := s.backend.Get(ctx, string(ns), string(key))
	if err != nil {
		metrics.CacheErrors.WithLabelValues(string(ns), "get").Inc()
		return nil, false, fmt.Errorf("failed to read %s cache: %w", ns, err)
	}
	if entry == nil || entry.Expired(s.clock.Now()) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Put stores value under key, replacing any existing entry.
// A zero ttl applies the namespace default.
func (s *Store) Put(ctx context.Context, ns Namespace, key Key, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.ttls[ns]
	}
	err := s.backend.Put(ctx, storage.Entry{
		Namespace: string(ns),
		Key:       string(key),
		Value:     value,
		CreatedAt: s.clock.Now(),
		TTL:       ttl,
	})
	if err != nil {
		metrics.CacheErrors.WithLabelValues(string(ns), "put").Inc()
		return fmt.Errorf("failed to write %s cache: %w", ns, err)
	}
	return nil
}

// Invalidate removes a single entry.
func (s *Store) Invalidate(ctx context.Context, ns Namespace, key Key) error {
	if err := s.backend.Delete(ctx, string(ns), string(key)); err != nil {
		metrics.CacheErrors.WithLabelValues(string(ns), "delete").Inc()
		return fmt.Errorf("failed to invalidate %s entry: %w", ns, err)
	}
	return nil
}

// Clear removes every entry of a namespace.
func (s *Store) Clear(ctx context.Context, ns Namespace) (int, error) {
	n, err := s.backend.DeleteNamespace(ctx, string(ns))
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s cache: %w", ns, err)
	}
	s.logger.Info("cache cleared", zap.String("namespace", string(ns)), zap.Int("removed", n))
	return n, nil
}

// Sweep evicts entries that are past their TTL.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	n, err := s.backend.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep cache: %w", err)
	}
	return n, nil
}

// Stats returns entry counts per namespace.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	return s.backend.Stats(ctx)
}

// GetOrCompute returns the cached value for key, computing and storing it on miss.
// Concurrent callers for the same (namespace, key) share a single computation.
func (s *Store) GetOrCompute(ctx context.Context, ns Namespace, key Key, fn ComputeFunc) (Result, error) {
	value, ok, err := s.Get(ctx, ns, key)
	if err != nil {
		return Result{}, err
	}
	if ok {
		metrics.CacheRequests.WithLabelValues(string(ns), "hit").Inc()
		return Result{Value: value, Hit: true}, nil
	}
	return s.compute(ctx, ns, key, fn, false)
}

// Recompute ignores any stored value, computes a fresh one and writes it through.
// Concurrent Recompute calls for the same key still share one computation.
func (s *Store) Recompute(ctx context.Context, ns Namespace, key Key, fn ComputeFunc) (Result, error) {
	return s.compute(ctx, ns, key, fn, true)
}

type flightValue struct {
	value []byte
	hit   bool
}

func (s *Store) compute(ctx context.Context, ns Namespace, key Key, fn ComputeFunc, refresh bool) (Result, error) {
	mode := "get"
	if refresh {
		mode = "refresh"
	}
	flightKey := mode + "|" + string(ns) + "|" + string(key)

	for attempt := 0; ; attempt++ {
		ch := s.group.DoChan(flightKey, func() (interface{}, error) {
			if !refresh {
				// A previous flight may have stored the value after our miss.
				if value, ok, err := s.Get(ctx, ns, key); err == nil && ok {
					return flightValue{value: value, hit: true}, nil
				}
			}

			start := time.Now()
			value, ttl, err := fn(ctx)
			metrics.CacheComputeDuration.WithLabelValues(string(ns)).Observe(time.Since(start).Seconds())
			if err != nil {
				return nil, err
			}

			if err := s.Put(ctx, ns, key, value, ttl); err != nil {
				// The value is still good for this run even if it could not be persisted.
				s.logger.Warn("failed to store computed value",
					zap.String("namespace", string(ns)),
					zap.Error(err))
			}
			return flightValue{value: value}, nil
		})

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				// The leader was cancelled but this caller is still live: run the flight again.
				if attempt == 0 && res.Shared && isContextError(res.Err) && ctx.Err() == nil {
					continue
				}
				return Result{}, res.Err
			}

			fv := res.Val.(flightValue)
			switch {
			case fv.hit:
				metrics.CacheRequests.WithLabelValues(string(ns), "hit").Inc()
			case refresh:
				metrics.CacheRequests.WithLabelValues(string(ns), "refresh").Inc()
			case res.Shared:
				metrics.CacheRequests.WithLabelValues(string(ns), "shared").Inc()
			default:
				metrics.CacheRequests.WithLabelValues(string(ns), "miss").Inc()
			}

			// Each caller gets its own copy of the shared bytes.
			value := make([]byte, len(fv.value))
			copy(value, fv.value)
			return Result{Value: value, Hit: fv.hit, Shared: res.Shared}, nil
		}
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
