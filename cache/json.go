package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// GetOrComputeJSON is GetOrCompute for JSON-serialisable values.
// When refresh is true the stored value is ignored and replaced.
// A stored value that no longer decodes as T is invalidated and recomputed once.
func GetOrComputeJSON[T any](
	ctx context.Context,
	s *Store,
	ns Namespace,
	key Key,
	refresh bool,
	fn func(ctx context.Context) (T, time.Duration, error),
) (T, Result, error) {
	var zero T

	compute := func(ctx context.Context) ([]byte, time.Duration, error) {
		v, ttl, err := fn(ctx)
		if err != nil {
			return nil, 0, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode %s value: %w", ns, err)
		}
		return data, ttl, nil
	}

	var (
		res Result
		err error
	)
	if refresh {
		res, err = s.Recompute(ctx, ns, key, compute)
	} else {
		res, err = s.GetOrCompute(ctx, ns, key, compute)
	}
	if err != nil {
		return zero, res, err
	}

	var out T
	if err := json.Unmarshal(res.Value, &out); err != nil {
		if !res.Hit {
			return zero, res, fmt.Errorf("failed to decode %s value: %w", ns, err)
		}
		s.logger.Warn("discarding undecodable cache entry",
			zap.String("namespace", string(ns)),
			zap.String("key", string(key)),
			zap.Error(err))
		if err := s.Invalidate(ctx, ns, key); err != nil {
			return zero, res, err
		}
		return GetOrComputeJSON(ctx, s, ns, key, true, fn)
	}
	return out, res, nil
}
