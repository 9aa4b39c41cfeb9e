// Package storage provides Redis cache storage.
//
// Information Hiding:
// - Key layout (<prefix>:<namespace>:<key>) hidden from callers
// - Entry envelope encoding encapsulated
// - Expiry delegated to Redis key TTLs

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "sleuth"

// RedisBackend implements Backend on top of a Redis server.
// Suited to sharing one cache between several processes.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

type redisEnvelope struct {
	Value     []byte `json:"v"`
	CreatedAt int64  `json:"c"`
	TTL       int64  `json:"t"`
}

// OpenRedis connects to Redis at addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, prefix string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return NewRedisBackend(client, prefix), nil
}

// NewRedisBackend wraps an existing client. An empty prefix uses "sleuth".
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) redisKey(namespace, key string) string {
	return r.prefix + ":" + namespace + ":" + key
}

// Get loads and decodes an entry.
func (r *RedisBackend) Get(ctx context.Context, namespace, key string) (*Entry, error) {
	raw, err := r.client.Get(ctx, r.redisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entry: %w", err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Unreadable envelopes are dropped rather than served.
		_ = r.Delete(ctx, namespace, key)
		return nil, nil
	}

	return &Entry{
		Namespace: namespace,
		Key:       key,
		Value:     env.Value,
		CreatedAt: time.Unix(0, env.CreatedAt),
		TTL:       time.Duration(env.TTL),
	}, nil
}

// Put stores an entry with a Redis TTL matching the entry TTL.
func (r *RedisBackend) Put(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(redisEnvelope{
		Value:     entry.Value,
		CreatedAt: entry.CreatedAt.UnixNano(),
		TTL:       int64(entry.TTL),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	var expiration time.Duration
	if entry.TTL > 0 {
		expiration = entry.TTL
	}

	if err := r.client.Set(ctx, r.redisKey(entry.Namespace, entry.Key), raw, expiration).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (r *RedisBackend) Delete(ctx context.Context, namespace, key string) error {
	if err := r.client.Del(ctx, r.redisKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteNamespace scans for the namespace prefix and deletes matching keys.
func (r *RedisBackend) DeleteNamespace(ctx context.Context, namespace string) (int, error) {
	keys, err := r.scan(ctx, r.prefix+":"+namespace+":*")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to clear namespace %s: %w", namespace, err)
	}
	return int(n), nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (r *RedisBackend) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// Stats counts keys per namespace under the backend prefix.
func (r *RedisBackend) Stats(ctx context.Context) (map[string]int, error) {
	keys, err := r.scan(ctx, r.prefix+":*")
	if err != nil {
		return nil, err
	}

	stats := make(map[string]int)
	for _, k := range keys {
		rest := strings.TrimPrefix(k, r.prefix+":")
		namespace, _, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		stats[namespace]++
	}
	return stats, nil
}

func (r *RedisBackend) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys %q: %w", pattern, err)
	}
	return keys, nil
}

// Close closes the Redis client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// Verify RedisBackend implements Backend
var _ Backend = (*RedisBackend)(nil)
