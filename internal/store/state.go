// Package store provides the key/value state persistence boundary the
// engine saves its history blob through.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"foresight/internal/logging"
)

// StateStore is the persistence boundary. GetState returns (nil, nil) for
// a missing key.
type StateStore interface {
	GetState(key string) ([]byte, error)
	SetState(key string, value []byte) error
}

// =============================================================================
// SQLITE
// =============================================================================

// SQLiteStateStore persists state blobs in a single SQLite table.
type SQLiteStateStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStateStore opens (or creates) the database at path and ensures
// the schema exists.
func NewSQLiteStateStore(path string) (*SQLiteStateStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS state (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	logging.Store("State store ready at %s", path)
	return &SQLiteStateStore{db: db}, nil
}

// GetState returns the stored value for key, or (nil, nil) when absent.
func (s *SQLiteStateStore) GetState(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state %q: %w", key, err)
	}
	return value, nil
}

// SetState upserts the value for key.
func (s *SQLiteStateStore) SetState(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write state %q: %w", key, err)
	}
	logging.StoreDebug("Persisted %d bytes under %q", len(value), key)
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// =============================================================================
// IN-MEMORY
// =============================================================================

// MemoryStateStore is a map-backed StateStore for tests and ephemeral use.
type MemoryStateStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: make(map[string][]byte)}
}

// GetState implements StateStore.
func (s *MemoryStateStore) GetState(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// SetState implements StateStore.
func (s *MemoryStateStore) SetState(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]byte, len(value))
	copy(copied, value)
	s.values[key] = copied
	return nil
}
