// Package postgres is a registry backend on a PostgreSQL table with a bytea column.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blobprobe/blobprobe/internal/registry"
)

// SQLSTATE disk_full
const codeDiskFull = "53100"

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	id           INTEGER PRIMARY KEY CHECK (id >= 0),
	data         BYTEA NOT NULL,
	size         BIGINT NOT NULL,
	sha256       TEXT NOT NULL,
	content_type TEXT NOT NULL,
	stored_at    TIMESTAMPTZ NOT NULL
)`

// Registry stores blobs in the blobs table through a connection pool.
type Registry struct {
	pool *pgxpool.Pool
}

// Open connects with dsn and creates the table if needed.
func Open(ctx context.Context, dsn string) (*Registry, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}
	return &Registry{pool: pool}, nil
}

func (r *Registry) Keys(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM blobs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = int(k)
	}
	return out, nil
}

func (r *Registry) Get(ctx context.Context, id int) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM blobs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
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
	if data == nil {
		data = []byte{}
	}
	info := registry.NewBlobInfo(id, data)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blobs (id, data, size, sha256, content_type, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			size = EXCLUDED.size,
			sha256 = EXCLUDED.sha256,
			content_type = EXCLUDED.content_type,
			stored_at = EXCLUDED.stored_at`,
		id, data, info.Size, info.SHA256, info.ContentType, info.StoredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeDiskFull {
			return &registry.QuotaError{ID: id, Size: info.Size, Err: err}
		}
		return fmt.Errorf("failed to store blob %d: %w", id, err)
	}
	return nil
}

func (r *Registry) Delete(ctx context.Context, id int) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM blobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete blob %d: %w", id, err)
	}
	return nil
}

func (r *Registry) List(ctx context.Context) ([]registry.BlobInfo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, size, sha256, content_type, stored_at FROM blobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (registry.BlobInfo, error) {
		return scanInfo(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	if infos == nil {
		infos = []registry.BlobInfo{}
	}
	return infos, nil
}

func (r *Registry) Stat(ctx context.Context, id int) (registry.BlobInfo, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, size, sha256, content_type, stored_at FROM blobs WHERE id = $1`, id)
	info, err := scanInfo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return registry.BlobInfo{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.BlobInfo{}, fmt.Errorf("failed to stat blob %d: %w", id, err)
	}
	return info, nil
}

func (r *Registry) Close() error {
	r.pool.Close()
	return nil
}

// Truncate removes every row. Used by tests to start from an empty table.
func (r *Registry) Truncate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `TRUNCATE blobs`)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(row scanner) (registry.BlobInfo, error) {
	var info registry.BlobInfo
	var id int32
	if err := row.Scan(&id, &info.Size, &info.SHA256, &info.ContentType, &info.StoredAt); err != nil {
		return registry.BlobInfo{}, err
	}
	info.ID = int(id)
	info.StoredAt = info.StoredAt.UTC()
	return info, nil
}
