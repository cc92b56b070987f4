// Package index provides the SQLite-backed metadata index: the
// authoritative record of each document's description, version, and
// timestamps, plus the append-only version records.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS docs (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	path        TEXT NOT NULL,
	version     INTEGER NOT NULL DEFAULT 1,
	checksum    TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
	name        TEXT NOT NULL,
	version     INTEGER NOT NULL,
	commit_hash TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	host_commit TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	PRIMARY KEY (name, version)
);

CREATE INDEX IF NOT EXISTS idx_docs_updated_at ON docs(updated_at DESC);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
