package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSqliteBackendContract(t *testing.T) {
	testBackendContract(t, func(t *testing.T) Backend {
		backend, err := NewSqliteInMemory()
		if err != nil {
			t.Fatalf("Failed to create backend: %v", err)
		}
		t.Cleanup(func() { backend.Close() })
		return backend
	})
}

func TestSqliteBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	ctx := context.Background()

	backend, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	if err := backend.Put(ctx, Entry{Namespace: "analysis", Key: "q", Value: []byte("decomposed"), CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	backend.Close()

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.Get(ctx, "analysis", "q")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded == nil || string(loaded.Value) != "decomposed" {
		t.Errorf("expected persisted entry, got %+v", loaded)
	}
}

func TestSqliteBackendDropsCorruptRows(t *testing.T) {
	backend, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	defer backend.Close()
	ctx := context.Background()

	if err := backend.Put(ctx, Entry{Namespace: "content", Key: "u", Value: []byte("good"), CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := backend.db.ExecContext(ctx, "UPDATE cache_entries SET value = ? WHERE key = ?", []byte("tampered"), "u"); err != nil {
		t.Fatalf("tamper failed: %v", err)
	}

	loaded, err := backend.Get(ctx, "content", "u")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected corrupt row to be reported absent, got %+v", loaded)
	}

	stats, _ := backend.Stats(ctx)
	if stats["content"] != 0 {
		t.Errorf("expected corrupt row to be deleted, stats: %v", stats)
	}
}

func TestSqliteBackendDeleteExpired(t *testing.T) {
	backend, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	defer backend.Close()
	ctx := context.Background()
	now := time.Unix(9000, 0)

	_ = backend.Put(ctx, Entry{Namespace: "search", Key: "old", Value: []byte("x"), CreatedAt: now.Add(-2 * time.Hour), TTL: time.Hour})
	_ = backend.Put(ctx, Entry{Namespace: "search", Key: "fresh", Value: []byte("x"), CreatedAt: now, TTL: time.Hour})
	_ = backend.Put(ctx, Entry{Namespace: "search", Key: "forever", Value: []byte("x"), CreatedAt: now.Add(-100 * time.Hour)})

	removed, err := backend.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
}
