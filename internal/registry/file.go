package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/blobprobe/blobprobe/internal/utils"
)

const (
	blobExt = ".blob"
	metaExt = ".json"
)

// FileRegistry keeps each blob as <id>.blob with a <id>.json metadata sidecar.
type FileRegistry struct {
	dir string
	mu  sync.RWMutex

	writeFile func(path string, data []byte) error
}

// NewFileRegistry creates dir if needed and returns a registry rooted there.
func NewFileRegistry(dir string) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", dir, err)
	}
	return &FileRegistry{dir: dir, writeFile: writeAtomic}, nil
}

// Dir returns the root directory.
func (r *FileRegistry) Dir() string {
	return r.dir
}

func (r *FileRegistry) blobPath(id int) string {
	return filepath.Join(r.dir, Key(id)+blobExt)
}

func (r *FileRegistry) metaPath(id int) string {
	return filepath.Join(r.dir, Key(id)+metaExt)
}

func (r *FileRegistry) Keys(ctx context.Context) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keys()
}

func (r *FileRegistry) keys() ([]int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("failed to read blob directory: %w", err)
	}

	keys := make([]int, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, blobExt) {
			continue
		}
		id, ok := ParseKey(strings.TrimSuffix(name, blobExt))
		if !ok {
			utils.Debug("Registry: skipping non-numeric blob file %s", name)
			continue
		}
		keys = append(keys, id)
	}
	return keys, nil
}

func (r *FileRegistry) Get(ctx context.Context, id int) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.blobPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read blob %d: %w", id, err)
	}
	return data, nil
}

func (r *FileRegistry) Set(ctx context.Context, id int, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	info := NewBlobInfo(id, data)
	meta, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for blob %d: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The old sidecar goes first: a sidecar must never describe bytes it was not written for
	if err := os.Remove(r.metaPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to drop metadata for blob %d: %w", id, err)
	}
	if err := r.writeFile(r.blobPath(id), data); err != nil {
		return mapDiskFull(id, int64(len(data)), err)
	}
	if err := r.writeFile(r.metaPath(id), meta); err != nil {
		// The blob is stored; stat rebuilds the sidecar from it
		utils.Debug("Registry: metadata for blob %d not written: %v", id, err)
	}
	return nil
}

func (r *FileRegistry) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, path := range []string{r.blobPath(id), r.metaPath(id)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete blob %d: %w", id, err)
		}
	}
	return nil
}

func (r *FileRegistry) List(ctx context.Context) ([]BlobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, err := r.keys()
	if err != nil {
		return nil, err
	}
	infos := make([]BlobInfo, 0, len(keys))
	for _, id := range keys {
		info, err := r.stat(id)
		if errors.Is(err, ErrNotFound) {
			continue // Removed between ReadDir and stat
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	SortInfos(infos)
	return infos, nil
}

func (r *FileRegistry) Stat(ctx context.Context, id int) (BlobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stat(id)
}

func (r *FileRegistry) stat(id int) (BlobInfo, error) {
	meta, err := os.ReadFile(r.metaPath(id))
	if err == nil {
		var info BlobInfo
		if jsonErr := json.Unmarshal(meta, &info); jsonErr == nil {
			return info, nil
		}
		utils.Debug("Registry: corrupt metadata for blob %d, rebuilding", id)
	}

	// Sidecar missing or unreadable: derive it from the blob itself
	fi, statErr := os.Stat(r.blobPath(id))
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return BlobInfo{}, ErrNotFound
		}
		return BlobInfo{}, fmt.Errorf("failed to stat blob %d: %w", id, statErr)
	}
	data, readErr := os.ReadFile(r.blobPath(id))
	if readErr != nil {
		return BlobInfo{}, fmt.Errorf("failed to read blob %d: %w", id, readErr)
	}
	info := NewBlobInfo(id, data)
	info.StoredAt = fi.ModTime().UTC()
	return info, nil
}

func (r *FileRegistry) Close() error {
	return nil
}

// writeAtomic writes data to a temp file in the target directory and renames it into place.
func writeAtomic(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), "temp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

func mapDiskFull(id int, size int64, err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return &QuotaError{ID: id, Size: size, Err: err}
	}
	return err
}
