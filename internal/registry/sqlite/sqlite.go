// Package sqlite is a registry backend on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/blobprobe/blobprobe/internal/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	id           INTEGER PRIMARY KEY,
	data         BLOB,
	size         INTEGER NOT NULL,
	sha256       TEXT NOT NULL,
	content_type TEXT NOT NULL,
	stored_at    INTEGER NOT NULL
);`

// Registry stores blobs in the blobs table.
type Registry struct {
	db *sql.DB
}

// Open creates the database file and its directory if needed and runs migrations.
func Open(dbPath string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time; concurrent callers queue on the pool instead of hitting SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	r := &Registry{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}
	return r, nil
}

func (r *Registry) migrate() error {
	_, err := r.db.Exec(schema)
	return err
}

func (r *Registry) Keys(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM blobs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	keys := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		keys = append(keys, id)
	}
	return keys, rows.Err()
}

func (r *Registry) Get(ctx context.Context, id int) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %d: %w", id, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (r *Registry) Set(ctx context.Context, id int, data []byte) error {
	if id < 0 {
		return fmt.Errorf("invalid blob identifier %d", id)
	}
	info := registry.NewBlobInfo(id, data)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blobs (id, data, size, sha256, content_type, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			sha256 = excluded.sha256,
			content_type = excluded.content_type,
			stored_at = excluded.stored_at`,
		id, data, info.Size, info.SHA256, info.ContentType, info.StoredAt.UnixNano())
	if err != nil {
		if isFull(err) {
			return &registry.QuotaError{ID: id, Size: info.Size, Err: err}
		}
		return fmt.Errorf("failed to store blob %d: %w", id, err)
	}
	return nil
}

func (r *Registry) Delete(ctx context.Context, id int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete blob %d: %w", id, err)
	}
	return nil
}

func (r *Registry) List(ctx context.Context) ([]registry.BlobInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, size, sha256, content_type, stored_at FROM blobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	infos := []registry.BlobInfo{}
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (r *Registry) Stat(ctx context.Context, id int) (registry.BlobInfo, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, size, sha256, content_type, stored_at FROM blobs WHERE id = ?`, id)
	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.BlobInfo{}, registry.ErrNotFound
	}
	return info, err
}

func (r *Registry) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(s scanner) (registry.BlobInfo, error) {
	var info registry.BlobInfo
	var storedAt int64
	if err := s.Scan(&info.ID, &info.Size, &info.SHA256, &info.ContentType, &storedAt); err != nil {
		return registry.BlobInfo{}, err
	}
	info.StoredAt = time.Unix(0, storedAt).UTC()
	return info, nil
}

// isFull reports SQLITE_FULL and SQLITE_TOOBIG, including their extended codes.
func isFull(err error) bool {
	var serr *msqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_FULL, sqlite3.SQLITE_TOOBIG:
		return true
	}
	return false
}
