// Package database is the storage layer of spec.md §4.2: schema
// creation/migration, a reference-counted prepared-statement cache, and
// transactional helpers for the files table and its per-domain tables.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/lms-scan/lms-scan/internal/paths"
)

// Store is the scan database handle. The worker process opens one read-write
// Store for the per-category rows its parsers write; the driver process opens
// its own read-write Store, through which it inserts, updates and tombstones
// files rows.
type Store struct {
	db    *sql.DB
	path  string
	stmts *stmtCache
	mu    sync.Mutex
}

// Open opens or creates the database at the default location
// (${USER_CONFIG_DIR}/lightmediascannerd/db.sqlite3, spec.md §4.6).
func Open() (*Store, error) {
	p, err := paths.DefaultDatabasePath()
	if err != nil {
		return nil, fmt.Errorf("resolve default database path: %w", err)
	}
	return OpenPath(p, false)
}

// OpenPath opens or creates the database at a specific path. readOnly opens
// the handle with mode=ro and skips migration; the daemon and lms-scan open
// read-write.
func OpenPath(path string, readOnly bool) (*Store, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if readOnly {
		dsn = path + "?mode=ro&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if readOnly {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, path: path, stmts: newStmtCache(db)}

	if !readOnly {
		if err := s.migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	return s, nil
}

// OpenInMemory opens an in-memory database, for tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping in-memory database: %w", err)
	}

	s := &Store{db: db, path: ":memory:", stmts: newStmtCache(db)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate in-memory database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.stmts.closeAll()
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
	return applyMigrations(s.db)
}

// PreviewMigrations reports every migration step pending against the
// database at path without applying any of them, backing the daemon's
// --dry-run-migrations flag. It opens its own short-lived connection rather
// than going through OpenPath, since OpenPath always migrates on open.
func PreviewMigrations(path string) ([]PendingMigration, error) {
	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pendingMigrations(db)
}

// Checkpoint folds the WAL back into the main database file. Called
// periodically by the scanner worker (via Batcher) instead of on every
// write, and once more after a scan completes.
func (s *Store) Checkpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(PASSIVE)`)
	return err
}
