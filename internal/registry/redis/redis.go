// Package redis is a registry backend keeping one hash per blob plus an index set of identifiers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blobprobe/blobprobe/internal/registry"
	"github.com/blobprobe/blobprobe/internal/utils"
)

const (
	fieldData        = "data"
	fieldSize        = "size"
	fieldSHA256      = "sha256"
	fieldContentType = "content_type"
	fieldStoredAt    = "stored_at"
)

// Registry stores blobs under <prefix>:blob:<id> and indexes identifiers in <prefix>:blobs.
type Registry struct {
	client *redis.Client
	prefix string
}

// New wraps an existing client. The registry owns it and closes it on Close.
func New(client *redis.Client, prefix string) *Registry {
	if prefix == "" {
		prefix = "blobprobe"
	}
	return &Registry{client: client, prefix: prefix}
}

// Open connects to addr and verifies the connection with PING.
func Open(ctx context.Context, addr string, db int, prefix string) (*Registry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return New(client, prefix), nil
}

func (r *Registry) indexKey() string {
	return r.prefix + ":blobs"
}

func (r *Registry) blobKey(id int) string {
	return fmt.Sprintf("%s:blob:%d", r.prefix, id)
}

func (r *Registry) Keys(ctx context.Context) ([]int, error) {
	members, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to SMEMBERS %s: %w", r.indexKey(), err)
	}
	keys := make([]int, 0, len(members))
	for _, m := range members {
		id, ok := registry.ParseKey(m)
		if !ok {
			utils.Debug("Registry: skipping non-numeric redis member %q", m)
			continue
		}
		keys = append(keys, id)
	}
	return keys, nil
}

func (r *Registry) Get(ctx context.Context, id int) ([]byte, error) {
	data, err := r.client.HGet(ctx, r.blobKey(id), fieldData).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to HGET %s: %w", r.blobKey(id), err)
	}
	return data, nil
}

func (r *Registry) Set(ctx context.Context, id int, data []byte) error {
	if id < 0 {
		return fmt.Errorf("invalid blob identifier %d", id)
	}
	info := registry.NewBlobInfo(id, data)
	key := r.blobKey(id)

	cmds, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldData, data,
			fieldSize, info.Size,
			fieldSHA256, info.SHA256,
			fieldContentType, info.ContentType,
			fieldStoredAt, info.StoredAt.UnixNano(),
		)
		pipe.SAdd(ctx, r.indexKey(), registry.Key(id))
		return nil
	})
	if err != nil {
		if oomErr := findOOM(err, cmds); oomErr != nil {
			return &registry.QuotaError{ID: id, Size: info.Size, Err: oomErr}
		}
		return fmt.Errorf("failed to store blob %d: %w", id, err)
	}
	return nil
}

func (r *Registry) Delete(ctx context.Context, id int) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.blobKey(id))
		pipe.SRem(ctx, r.indexKey(), registry.Key(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob %d: %w", id, err)
	}
	return nil
}

func (r *Registry) List(ctx context.Context) ([]registry.BlobInfo, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.SliceCmd, len(keys))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range keys {
			cmds[i] = pipe.HMGet(ctx, r.blobKey(id), fieldSize, fieldSHA256, fieldContentType, fieldStoredAt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read blob metadata: %w", err)
	}

	infos := make([]registry.BlobInfo, 0, len(keys))
	for i, id := range keys {
		info, ok := decodeInfo(id, cmds[i].Val())
		if !ok {
			// Indexed but the hash is gone
			continue
		}
		infos = append(infos, info)
	}
	registry.SortInfos(infos)
	return infos, nil
}

func (r *Registry) Stat(ctx context.Context, id int) (registry.BlobInfo, error) {
	vals, err := r.client.HMGet(ctx, r.blobKey(id), fieldSize, fieldSHA256, fieldContentType, fieldStoredAt).Result()
	if err != nil {
		return registry.BlobInfo{}, fmt.Errorf("failed to HMGET %s: %w", r.blobKey(id), err)
	}
	info, ok := decodeInfo(id, vals)
	if !ok {
		return registry.BlobInfo{}, registry.ErrNotFound
	}
	return info, nil
}

func (r *Registry) Close() error {
	return r.client.Close()
}

func decodeInfo(id int, vals []any) (registry.BlobInfo, bool) {
	if len(vals) != 4 || vals[0] == nil {
		return registry.BlobInfo{}, false
	}
	str := func(v any) string {
		s, _ := v.(string)
		return s
	}
	size, _ := strconv.ParseInt(str(vals[0]), 10, 64)
	storedAt, _ := strconv.ParseInt(str(vals[3]), 10, 64)
	return registry.BlobInfo{
		ID:          id,
		Size:        size,
		SHA256:      str(vals[1]),
		ContentType: str(vals[2]),
		StoredAt:    time.Unix(0, storedAt).UTC(),
	}, true
}

// isOOM matches the error redis returns when maxmemory is reached.
func isOOM(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "OOM")
}

// findOOM returns the maxmemory rejection behind a failed transaction. Inside
// MULTI the server rejects the queued command with OOM and EXEC only answers
// EXECABORT, so the queued commands are searched too.
func findOOM(err error, cmds []redis.Cmder) error {
	if isOOM(err) {
		return err
	}
	for _, cmd := range cmds {
		if isOOM(cmd.Err()) {
			return cmd.Err()
		}
	}
	return nil
}
