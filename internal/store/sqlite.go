// Package store is the SQLite entry repository: the source of truth the
// search index is derived from.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
)

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("not found")

// Store is a SQLite backed repository of entries and ratings.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens the database at path, creating it and its schema if needed.
// An empty path opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ofdberrors.IOError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ofdberrors.New(ofdberrors.ErrCodeStoreFailed, "failed to open database", err)
	}

	// Single connection: one writer, and an in-memory database lives per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, ofdberrors.New(ofdberrors.ErrCodeStoreFailed, "failed to set pragma", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, ofdberrors.New(ofdberrors.ErrCodeStoreFailed, "failed to initialize schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS entries (
		id          TEXT PRIMARY KEY,
		version     INTEGER NOT NULL DEFAULT 0,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		lat         REAL NOT NULL,
		lng         REAL NOT NULL,
		street      TEXT,
		zip         TEXT,
		city        TEXT,
		country     TEXT
	);

	CREATE TABLE IF NOT EXISTS entry_categories (
		entry_id    TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		category_id TEXT NOT NULL,
		PRIMARY KEY (entry_id, category_id)
	);

	CREATE TABLE IF NOT EXISTS entry_tags (
		entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		tag      TEXT NOT NULL,
		PRIMARY KEY (entry_id, tag)
	);

	CREATE TABLE IF NOT EXISTS ratings (
		id       TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		created  INTEGER NOT NULL,
		title    TEXT NOT NULL DEFAULT '',
		value    INTEGER NOT NULL,
		context  TEXT NOT NULL,
		source   TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_ratings_entry ON ratings(entry_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	if s.closed {
		return ofdberrors.New(ofdberrors.ErrCodeStoreFailed, "store is closed", nil)
	}
	return nil
}

func notFound(kind, id string) error {
	return ofdberrors.New(ofdberrors.ErrCodeEntryNotFound, fmt.Sprintf("%s %s not found", kind, id), ErrNotFound)
}

func storeFailed(op string, err error) error {
	return ofdberrors.New(ofdberrors.ErrCodeStoreFailed, op, err)
}
