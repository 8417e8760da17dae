// Package store persists computed module graphs in SQLite so they can be
// queried without recomputing them. It is a report of what the engine
// computed, never read back into the engine.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for exported module graphs.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS source_roots (
  id              INTEGER PRIMARY KEY,
  dir             TEXT NOT NULL UNIQUE,
  revision        INTEGER NOT NULL,
  graph_hash      TEXT NOT NULL,
  indexed_at      TIMESTAMP
);

CREATE TABLE IF NOT EXISTS files (
  root_id         INTEGER NOT NULL REFERENCES source_roots(id) ON DELETE CASCADE,
  file_id         INTEGER NOT NULL,
  path            TEXT NOT NULL,
  line_count      INTEGER,
  PRIMARY KEY (root_id, file_id)
);

CREATE TABLE IF NOT EXISTS modules (
  root_id         INTEGER NOT NULL REFERENCES source_roots(id) ON DELETE CASCADE,
  module_id       INTEGER NOT NULL,
  file_id         INTEGER NOT NULL,
  inline_start    INTEGER,
  inline_end      INTEGER,
  parent_link     INTEGER,
  path            TEXT NOT NULL,
  is_root         BOOLEAN NOT NULL DEFAULT FALSE,
  PRIMARY KEY (root_id, module_id)
);

CREATE TABLE IF NOT EXISTS links (
  root_id         INTEGER NOT NULL REFERENCES source_roots(id) ON DELETE CASCADE,
  link_id         INTEGER NOT NULL,
  owner_module    INTEGER NOT NULL,
  name            TEXT NOT NULL,
  line            INTEGER,
  col             INTEGER,
  problem         TEXT,
  candidate       TEXT,
  move_to         TEXT,
  PRIMARY KEY (root_id, link_id)
);

CREATE TABLE IF NOT EXISTS link_targets (
  root_id         INTEGER NOT NULL REFERENCES source_roots(id) ON DELETE CASCADE,
  link_id         INTEGER NOT NULL,
  ordinal         INTEGER NOT NULL,
  module_id       INTEGER NOT NULL,
  PRIMARY KEY (root_id, link_id, ordinal)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);
CREATE INDEX IF NOT EXISTS idx_modules_path ON modules(path);
CREATE INDEX IF NOT EXISTS idx_modules_file ON modules(root_id, file_id);
CREATE INDEX IF NOT EXISTS idx_links_owner ON links(root_id, owner_module);
CREATE INDEX IF NOT EXISTS idx_links_problem ON links(problem);
`

// SetMetadata stores a key/value pair.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// GetMetadata returns the value stored for key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return v, nil
}
