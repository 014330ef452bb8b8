// Package store is the snapshot store: durable persistence for projects,
// snapshots, files, symbols, references, changesets, and patches (spec
// §3, §4.D). It is backed by an embedded SQLite database opened through
// the pure-Go modernc.org/sqlite driver, following the
// jra3-linear-fuse internal/db.Store shape: an embedded schema applied
// on open, a thin wrapper around *sql.DB, and hand-written queries
// instead of an ORM.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the snapshot store's database connection.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at path and applies the schema.
// path may be ":memory:" for an ephemeral, process-local store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	connStr := "file:" + strings.ReplaceAll(path, " ", "%20") + "?_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		connStr = "file::memory:?cache=shared&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for callers that need a raw query.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn within a transaction, committing on success and rolling
// back on error or panic. Used by the orchestrator to bound commit size
// (spec §4.F, §5) and by the changeset applier for snapshot-local writes.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
