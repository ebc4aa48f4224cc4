// Package store persists servers, aliases, variables, secrets, content and
// invocation records in SQLite, and implements every lookup the engine needs.
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo)
// and "sqlite" (modernc.org/sqlite, pure Go).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"viewer/internal/config"
	"viewer/internal/engine"
	"viewer/internal/logging"
)

// Drivers lists the accepted database/sql driver names.
var Drivers = []string{"sqlite3", "sqlite"}

// Store is the SQLite-backed persistence layer.
type Store struct {
	db        *sql.DB
	driver    string
	path      string
	principal string

	// aliases caches enabled routes in match order; nil means reload.
	mu      sync.RWMutex
	aliases []aliasRow
}

var (
	_ engine.ServerLookup       = (*Store)(nil)
	_ engine.AliasLookup        = (*Store)(nil)
	_ engine.ContentStore       = (*Store)(nil)
	_ engine.PrincipalContext   = (*Store)(nil)
	_ engine.InvocationRecorder = (*Store)(nil)
)

// Open opens (creating if needed) the database described by cfg.
func Open(cfg config.StorageConfig) (*Store, error) {
	return OpenPath(cfg.Driver, cfg.DatabasePath, cfg.Principal)
}

// OpenPath opens the database at path with the named driver. The path
// ":memory:" opens a private in-memory database.
func OpenPath(driver, path, principal string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if driver == "" {
		driver = "sqlite3"
	}
	if !validDriver(driver) {
		return nil, fmt.Errorf("unsupported database driver %q (want one of %v)", driver, Drivers)
	}
	if principal == "" {
		principal = "default"
	}

	logging.Store("opening %s database at %s", driver, path)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.StoreError("failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("%s failed: %v", pragma, err)
		}
	}

	s := &Store{db: db, driver: driver, path: path, principal: principal}
	if err := s.initialize(); err != nil {
		logging.StoreError("failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("store ready (driver=%s, principal=%s)", driver, principal)
	return s, nil
}

func validDriver(driver string) bool {
	for _, d := range Drivers {
		if d == driver {
			return true
		}
	}
	return false
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance commands.
func (s *Store) DB() *sql.DB { return s.db }

// Principal returns the principal whose variables and secrets are served.
func (s *Store) Principal() string { return s.principal }

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS servers (
		name TEXT PRIMARY KEY,
		definition TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS aliases (
		name TEXT PRIMARY KEY,
		match_type TEXT NOT NULL DEFAULT 'literal',
		pattern TEXT NOT NULL DEFAULT '',
		target TEXT NOT NULL,
		ignore_case INTEGER NOT NULL DEFAULT 0,
		enabled INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_aliases_position ON aliases(position);

	CREATE TABLE IF NOT EXISTS variables (
		principal TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY(principal, name)
	);

	CREATE TABLE IF NOT EXISTS secrets (
		principal TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY(principal, name)
	);

	CREATE TABLE IF NOT EXISTS content (
		cid TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		size INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		server_name TEXT NOT NULL,
		result_cid TEXT NOT NULL DEFAULT '',
		auxiliary_cids TEXT NOT NULL DEFAULT '[]',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_server ON invocations(server_name);
	CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
