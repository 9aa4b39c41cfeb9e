// Package storage provides durable key/value backends for the research cache.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory, SQLite and Redis without API changes
// - Each backend encapsulates its own encoding, expiry and namespace layout

package storage

import (
	"context"
	"time"
)

// Entry is one cached payload inside a namespace.
// A TTL of zero means the entry never expires.
type Entry struct {
	Namespace string        `json:"namespace"`
	Key       string        `json:"key"`
	Value     []byte        `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// ExpiresAt returns the expiry instant, or the zero time when the entry never expires.
func (e Entry) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL)
}

// Expired reports whether the entry is past its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return !now.Before(e.ExpiresAt())
}

// clone returns a copy that shares no memory with e.
func (e Entry) clone() Entry {
	c := e
	if e.Value != nil {
		c.Value = make([]byte, len(e.Value))
		copy(c.Value, e.Value)
	}
	return c
}

// Backend defines the interface for storing cache entries.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the entry for (namespace, key).
	// Returns nil, nil if the entry doesn't exist. Expiry is left to the caller.
	Get(ctx context.Context, namespace, key string) (*Entry, error)

	// Put stores an entry, replacing any previous entry wholesale.
	Put(ctx context.Context, entry Entry) error

	// Delete removes a single entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// DeleteNamespace removes every entry in a namespace and returns how many were removed.
	DeleteNamespace(ctx context.Context, namespace string) (int, error)

	// DeleteExpired removes entries whose TTL has elapsed at now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// Stats returns the number of stored entries per namespace.
	Stats(ctx context.Context) (map[string]int, error)

	// Close releases resources.
	Close() error
}
