package registry

import (
	"context"
	"sync"
)

// Quota caps the total bytes held by the wrapped registry.
type Quota struct {
	Registry
	limit int64
	mu    sync.Mutex
}

// WithQuota wraps reg so a Set that would push the total size past limit fails with *QuotaError.
// Replacing a blob only counts the difference in size.
func WithQuota(reg Registry, limit int64) *Quota {
	return &Quota{Registry: reg, limit: limit}
}

// Limit returns the byte budget.
func (q *Quota) Limit() int64 {
	return q.limit
}

func (q *Quota) Set(ctx context.Context, id int, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	infos, err := q.Registry.List(ctx)
	if err != nil {
		return err
	}
	var used int64
	for _, info := range infos {
		if info.ID != id {
			used += info.Size
		}
	}
	size := int64(len(data))
	if used+size > q.limit {
		return &QuotaError{ID: id, Size: size, Limit: q.limit}
	}
	return q.Registry.Set(ctx, id, data)
}
