package registry

import (
	"context"
	"sync"
)

type memBlob struct {
	data []byte
	info BlobInfo
}

// Memory is a process-local registry. Contents are lost on exit.
type Memory struct {
	mu    sync.RWMutex
	blobs map[int]memBlob
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[int]memBlob)}
}

func (m *Memory) Keys(ctx context.Context) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]int, 0, len(m.blobs))
	for id := range m.blobs {
		keys = append(keys, id)
	}
	return keys, nil
}

func (m *Memory) Get(ctx context.Context, id int) ([]byte, error) {
	m.mu.RLock()
	b, ok := m.blobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, id int, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	info := NewBlobInfo(id, buf)

	m.mu.Lock()
	m.blobs[id] = memBlob{data: buf, info: info}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	delete(m.blobs, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context) ([]BlobInfo, error) {
	m.mu.RLock()
	infos := make([]BlobInfo, 0, len(m.blobs))
	for _, b := range m.blobs {
		infos = append(infos, b.info)
	}
	m.mu.RUnlock()
	SortInfos(infos)
	return infos, nil
}

func (m *Memory) Stat(ctx context.Context, id int) (BlobInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[id]
	if !ok {
		return BlobInfo{}, ErrNotFound
	}
	return b.info, nil
}

func (m *Memory) Close() error {
	return nil
}
