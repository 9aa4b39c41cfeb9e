// Package storage provides SQLite cache storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and checksum details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
)

// SqliteBackend implements Backend using SQLite.
// Entries survive process restarts, which makes it the default for the CLI.
type SqliteBackend struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteBackend, error) {
	// Create parent directory if needed
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL plus a busy timeout lets concurrent fan-out branches write without "database is locked".
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	backend := &SqliteBackend{db: db}
	if err := backend.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return backend, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteBackend, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	backend := &SqliteBackend{db: db}
	if err := backend.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return backend, nil
}

// Close closes the database connection.
func (s *SqliteBackend) Close() error {
	return s.db.Close()
}

func (s *SqliteBackend) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			checksum TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			ttl_ns INTEGER NOT NULL DEFAULT 0,
			expires_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (namespace, key)
		);

		CREATE INDEX IF NOT EXISTS idx_cache_entries_expiry
		ON cache_entries(expires_at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Get loads an entry and verifies its checksum.
// A row whose value no longer matches its checksum is deleted and reported absent.
func (s *SqliteBackend) Get(ctx context.Context, namespace, key string) (*Entry, error) {
	var (
		value     []byte
		checksum  string
		createdAt int64
		ttl       int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT value, checksum, created_at, ttl_ns
		FROM cache_entries
		WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value, &checksum, &createdAt, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entry: %w", err)
	}

	if checksumOf(value) != checksum {
		if err := s.Delete(ctx, namespace, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &Entry{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		CreatedAt: time.Unix(0, createdAt),
		TTL:       time.Duration(ttl),
	}, nil
}

// Put stores an entry, replacing any previous row.
func (s *SqliteBackend) Put(ctx context.Context, entry Entry) error {
	var expiresAt int64
	if exp := entry.ExpiresAt(); !exp.IsZero() {
		expiresAt = exp.UnixNano()
	}

	value := entry.Value
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries
		(namespace, key, value, checksum, created_at, ttl_ns, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Namespace,
		entry.Key,
		value,
		checksumOf(value),
		entry.CreatedAt.UnixNano(),
		int64(entry.TTL),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (s *SqliteBackend) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE namespace = ? AND key = ?",
		namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteNamespace removes every entry in a namespace.
func (s *SqliteBackend) DeleteNamespace(ctx context.Context, namespace string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE namespace = ?",
		namespace)
	if err != nil {
		return 0, fmt.Errorf("failed to clear namespace %s: %w", namespace, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted entries: %w", err)
	}
	return int(n), nil
}

// DeleteExpired removes entries whose expiry is at or before now.
func (s *SqliteBackend) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at <= ?",
		now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted entries: %w", err)
	}
	return int(n), nil
}

// Stats counts entries per namespace.
func (s *SqliteBackend) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT namespace, COUNT(*) FROM cache_entries GROUP BY namespace")
	if err != nil {
		return nil, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var (
			namespace string
			count     int
		)
		if err := rows.Scan(&namespace, &count); err != nil {
			return nil, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		stats[namespace] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache stats: %w", err)
	}

	return stats, nil
}

func checksumOf(value []byte) string {
	return strconv.FormatUint(xxhash.Sum64(value), 16)
}

// Verify SqliteBackend implements Backend
var _ Backend = (*SqliteBackend)(nil)
