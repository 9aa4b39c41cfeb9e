package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBackendContract(t *testing.T) {
	testBackendContract(t, func(t *testing.T) Backend {
		return NewMemoryBackend()
	})
}

func TestMemoryBackendCopiesValues(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	value := []byte("original")
	if err := backend.Put(ctx, Entry{Namespace: "content", Key: "k", Value: value, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	value[0] = 'X'

	loaded, _ := backend.Get(ctx, "content", "k")
	if string(loaded.Value) != "original" {
		t.Errorf("stored value was mutated through caller slice: %q", loaded.Value)
	}

	loaded.Value[0] = 'Y'
	again, _ := backend.Get(ctx, "content", "k")
	if string(again.Value) != "original" {
		t.Errorf("stored value was mutated through returned slice: %q", again.Value)
	}
}

func TestMemoryBackendDeleteExpired(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	now := time.Unix(5000, 0)

	_ = backend.Put(ctx, Entry{Namespace: "search", Key: "old", Value: []byte("x"), CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour})
	_ = backend.Put(ctx, Entry{Namespace: "search", Key: "fresh", Value: []byte("x"), CreatedAt: now, TTL: time.Hour})
	_ = backend.Put(ctx, Entry{Namespace: "search", Key: "forever", Value: []byte("x"), CreatedAt: now.Add(-100 * time.Hour)})

	removed, err := backend.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired entry removed, got %d", removed)
	}

	if e, _ := backend.Get(ctx, "search", "fresh"); e == nil {
		t.Error("fresh entry should survive")
	}
	if e, _ := backend.Get(ctx, "search", "forever"); e == nil {
		t.Error("entry without TTL should survive")
	}
}
