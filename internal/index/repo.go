package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// DocRow represents a row in the docs table.
type DocRow struct {
	Name        string
	Description string
	Path        string
	Version     int
	Checksum    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateDoc inserts a new document row at version 1.
func (db *DB) CreateDoc(row DocRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO docs (name, description, path, version, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, row.Name, row.Description, row.Path, row.Version, row.Checksum, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("index: doc %q: %w", row.Name, apperr.ErrConflict)
		}
		return storeErr("create doc", err)
	}
	return nil
}

// UpdateDoc replaces the mutable fields of an existing document row.
func (db *DB) UpdateDoc(name, description, checksum string, version int, updatedAt time.Time) error {
	res, err := db.conn.Exec(`
		UPDATE docs
		SET description = ?, checksum = ?, version = ?, updated_at = ?
		WHERE name = ?
	`, description, checksum, version, updatedAt, name)
	if err != nil {
		return storeErr("update doc", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("update doc", err)
	}
	if n == 0 {
		return fmt.Errorf("index: doc %q: %w", name, apperr.ErrNotFound)
	}
	return nil
}

// GetDoc returns the document row for name.
func (db *DB) GetDoc(name string) (*DocRow, error) {
	row := db.conn.QueryRow(`
		SELECT name, description, path, version, checksum, created_at, updated_at
		FROM docs WHERE name = ?
	`, name)
	var d DocRow
	err := row.Scan(&d.Name, &d.Description, &d.Path, &d.Version, &d.Checksum, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: doc %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get doc", err)
	}
	return &d, nil
}

// Exists reports whether a document row exists for name.
func (db *DB) Exists(name string) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM docs WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("exists", err)
	}
	return true, nil
}

// ListDocs returns every document row ordered by name.
func (db *DB) ListDocs() ([]DocRow, error) {
	rows, err := db.conn.Query(`
		SELECT name, description, path, version, checksum, created_at, updated_at
		FROM docs ORDER BY name
	`)
	if err != nil {
		return nil, storeErr("list docs", err)
	}
	defer rows.Close()
	return scanDocs(rows)
}

// Recent returns up to limit document rows, most recently updated first.
func (db *DB) Recent(limit int) ([]DocRow, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := db.conn.Query(`
		SELECT name, description, path, version, checksum, created_at, updated_at
		FROM docs ORDER BY updated_at DESC, name LIMIT ?
	`, limit)
	if err != nil {
		return nil, storeErr("recent docs", err)
	}
	defer rows.Close()
	return scanDocs(rows)
}

// AddVersion appends one immutable version record.
func (db *DB) AddVersion(rec models.VersionRecord) error {
	_, err := db.conn.Exec(`
		INSERT INTO versions (name, version, commit_hash, message, host_commit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Name, rec.Version, rec.CommitHash, rec.Message, rec.HostCommit, rec.CreatedAt)
	if err != nil {
		return storeErr("add version", err)
	}
	return nil
}

// DeleteVersion removes a single version record. It exists only to
// compensate a mutation whose doc-row update failed after the record
// was written; version records are otherwise never removed.
func (db *DB) DeleteVersion(name string, version int) error {
	if _, err := db.conn.Exec(`DELETE FROM versions WHERE name = ? AND version = ?`, name, version); err != nil {
		return storeErr("delete version", err)
	}
	return nil
}

// Versions returns every version record for name, newest first.
func (db *DB) Versions(name string) ([]models.VersionRecord, error) {
	rows, err := db.conn.Query(`
		SELECT name, version, commit_hash, message, host_commit, created_at
		FROM versions WHERE name = ? ORDER BY version DESC
	`, name)
	if err != nil {
		return nil, storeErr("versions", err)
	}
	defer rows.Close()

	var out []models.VersionRecord
	for rows.Next() {
		var r models.VersionRecord
		if err := rows.Scan(&r.Name, &r.Version, &r.CommitHash, &r.Message, &r.HostCommit, &r.CreatedAt); err != nil {
			return nil, storeErr("versions", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats returns the document count and the total version-record count.
func (db *DB) Stats() (docs int, versions int, err error) {
	if err = db.conn.QueryRow(`SELECT count(*) FROM docs`).Scan(&docs); err != nil {
		return 0, 0, storeErr("stats", err)
	}
	if err = db.conn.QueryRow(`SELECT count(*) FROM versions`).Scan(&versions); err != nil {
		return 0, 0, storeErr("stats", err)
	}
	return docs, versions, nil
}

func scanDocs(rows *sql.Rows) ([]DocRow, error) {
	var out []DocRow
	for rows.Next() {
		var d DocRow
		if err := rows.Scan(&d.Name, &d.Description, &d.Path, &d.Version, &d.Checksum, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, storeErr("scan doc", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("index: %s: %w: %w", op, apperr.ErrStorageUnavailable, err)
}
