// Package localstore is the client's durable key/value store: a flat map of
// string keys to string values kept in memory and written through to a
// SQLite file on every change.
package localstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const dirPerm = 0o700

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Store is safe for concurrent use. A Store opened with an empty path keeps
// its values in memory only.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	values map[string]string
}

// Open loads the store kept at path. A missing file yields an empty store;
// the file and its directory are created on open.
func Open(path string) (*Store, error) {
	store := &Store{values: map[string]string{}}
	if path == "" {
		return store, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("in internal/client/localstore/localstore.go/Open(): error while `os.MkdirAll()` calling: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("in internal/client/localstore/localstore.go/Open(): error while `sql.Open()` calling: %w", err)
	}
	db.SetMaxOpenConns(1)
	store.db = db

	ctx := context.Background()
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := store.load(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("in internal/client/localstore/localstore.go/migrate(): error while `fs.Sub()` calling: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("in internal/client/localstore/localstore.go/migrate(): error while `goose.NewProvider()` calling: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("in internal/client/localstore/localstore.go/migrate(): error while `provider.Up()` calling: %w", err)
	}

	return nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM local_values`)
	if err != nil {
		return fmt.Errorf("in internal/client/localstore/localstore.go/load(): error while `s.db.QueryContext()` calling: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("in internal/client/localstore/localstore.go/load(): error while `rows.Scan()` calling: %w", err)
		}
		s.values[key] = value
	}

	return rows.Err()
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	return s.Update(func(values map[string]string) {
		values[key] = value
	})
}

// Delete removes keys; missing keys are ignored.
func (s *Store) Delete(keys ...string) error {
	return s.Update(func(values map[string]string) {
		for _, key := range keys {
			delete(values, key)
		}
	})
}

// Update applies fn to the values and persists the changed keys in one
// transaction. The in-memory state keeps the change even when writing fails.
func (s *Store) Update(fn func(values map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := make(map[string]string, len(s.values))
	for key, value := range s.values {
		before[key] = value
	}

	fn(s.values)

	if s.db == nil {
		return nil
	}

	return s.persist(context.Background(), before)
}

// persist writes the difference between before and the current values.
func (s *Store) persist(ctx context.Context, before map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("in internal/client/localstore/localstore.go/persist(): error while `s.db.BeginTx()` calling: %w", err)
	}
	defer tx.Rollback()

	for key, value := range s.values {
		if old, ok := before[key]; ok && old == value {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO local_values (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		if err != nil {
			return fmt.Errorf("in internal/client/localstore/localstore.go/persist(): error while `tx.ExecContext()` calling: %w", err)
		}
	}

	for key := range before {
		if _, ok := s.values[key]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM local_values WHERE key = ?`, key); err != nil {
			return fmt.Errorf("in internal/client/localstore/localstore.go/persist(): error while `tx.ExecContext()` calling: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("in internal/client/localstore/localstore.go/persist(): error while `tx.Commit()` calling: %w", err)
	}

	return nil
}

// Close releases the database file.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}
