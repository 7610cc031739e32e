// Package store provides the durable local key-value store backing the
// client snapshot and the autosave copy of the budget.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/budgetbox/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Keys used by the client.
const (
	SnapshotKey = "budget-storage"
	AutosaveKey = "budget-auto-save"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// DB is a SQLite-backed key-value store.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at the given path. The special path
// ":memory:" opens a private in-memory database.
func Open(dbPath string) (*DB, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: creating data dir: %v", model.ErrStorage, err)
		}
		dsn = dbPath + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening db: %v", model.ErrStorage, err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", model.ErrStorage, err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (s *DB) Close() error {
	return s.db.Close()
}

// Get returns the raw value stored under key.
func (s *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", model.ErrStorage, key, err)
	}
	return []byte(value), nil
}

// Put writes value under key, replacing any previous value.
func (s *DB) Put(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)",
		key, string(value), now,
	)
	if err != nil {
		return fmt.Errorf("%w: writing %s: %v", model.ErrStorage, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *DB) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: deleting %s: %v", model.ErrStorage, key, err)
	}
	return nil
}

// Keys lists every stored key with its last write time.
func (s *DB) Keys(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, updated_at FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("%w: listing keys: %v", model.ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]time.Time)
	for rows.Next() {
		var key, updated string
		if err := rows.Scan(&key, &updated); err != nil {
			return nil, fmt.Errorf("%w: listing keys: %v", model.ErrStorage, err)
		}
		t, _ := time.Parse(time.RFC3339Nano, updated)
		result[key] = t
	}
	return result, rows.Err()
}

// LoadSnapshot decodes the persisted client snapshot. A missing snapshot
// returns ErrNotFound; an undecodable or invalid one returns a wrapped
// ErrStorage.
func (s *DB) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := s.getJSON(ctx, SnapshotKey, &snap); err != nil {
		return model.Snapshot{}, err
	}
	if err := snap.Validate(); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: snapshot: %v", model.ErrStorage, err)
	}
	return snap, nil
}

// SaveSnapshot persists the client snapshot.
func (s *DB) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	return s.putJSON(ctx, SnapshotKey, snap)
}

// LoadAutosave decodes the autosaved budget.
func (s *DB) LoadAutosave(ctx context.Context) (model.Budget, error) {
	var b model.Budget
	if err := s.getJSON(ctx, AutosaveKey, &b); err != nil {
		return model.Budget{}, err
	}
	if err := b.Validate(); err != nil {
		return model.Budget{}, fmt.Errorf("%w: autosave: %v", model.ErrStorage, err)
	}
	return b, nil
}

// SaveBudget writes the autosave copy of b.
func (s *DB) SaveBudget(ctx context.Context, b model.Budget) error {
	return s.putJSON(ctx, AutosaveKey, b)
}

func (s *DB) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", model.ErrStorage, key, err)
	}
	return nil
}

func (s *DB) putJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", model.ErrStorage, key, err)
	}
	return s.Put(ctx, key, raw)
}
