// Package registry stores downloaded blobs under non-negative integer identifiers.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/h2non/filetype"
)

// ErrNotFound is returned by Get and Stat for an identifier with no stored blob.
var ErrNotFound = errors.New("blob not found")

// DefaultContentType is reported when the leading bytes match no known format.
const DefaultContentType = "application/octet-stream"

// QuotaError reports a write rejected for lack of space.
// Limit is 0 when the backend did not say how much it can hold.
type QuotaError struct {
	ID    int
	Size  int64
	Limit int64
	Err   error
}

func (e *QuotaError) Error() string {
	msg := fmt.Sprintf("quota exceeded storing blob %d (%d bytes)", e.ID, e.Size)
	if e.Limit > 0 {
		msg += fmt.Sprintf(", limit %d bytes", e.Limit)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// BlobInfo describes a stored blob without its bytes.
type BlobInfo struct {
	ID          int       `json:"id"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	ContentType string    `json:"content_type"`
	StoredAt    time.Time `json:"stored_at"`
}

// NewBlobInfo computes the metadata recorded alongside data.
func NewBlobInfo(id int, data []byte) BlobInfo {
	sum := sha256.Sum256(data)
	return BlobInfo{
		ID:          id,
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		ContentType: SniffContentType(data),
		StoredAt:    time.Now().UTC(),
	}
}

// SniffContentType guesses a MIME type from the leading bytes.
func SniffContentType(data []byte) string {
	head := data
	if len(head) > 262 {
		head = head[:262]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || kind.MIME.Value == "" {
		return DefaultContentType
	}
	return kind.MIME.Value
}

// Registry is a key-value store of binary blobs keyed by identifier.
// Implementations are safe for concurrent use.
type Registry interface {
	// Keys returns every stored identifier in no particular order.
	Keys(ctx context.Context) ([]int, error)
	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, id int) ([]byte, error)
	// Set creates or wholesale replaces the blob under id.
	Set(ctx context.Context, id int, data []byte) error
	// Delete removes id. Deleting an absent identifier succeeds.
	Delete(ctx context.Context, id int) error
	// List returns metadata for every blob, sorted by identifier.
	List(ctx context.Context) ([]BlobInfo, error)
	// Stat returns metadata for one blob or ErrNotFound.
	Stat(ctx context.Context, id int) (BlobInfo, error)
	Close() error
}

// Key formats an identifier as its decimal storage key.
func Key(id int) string {
	return strconv.Itoa(id)
}

// ParseKey reads a storage key written by Key. Non-numeric, negative and
// non-canonical keys ("07", "+7") are rejected, since Key(id) would never find them.
func ParseKey(key string) (int, bool) {
	id, err := strconv.Atoi(key)
	if err != nil || id < 0 || Key(id) != key {
		return 0, false
	}
	return id, true
}

// SortInfos orders infos by identifier.
func SortInfos(infos []BlobInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
}

// TotalSize sums the sizes of infos.
func TotalSize(infos []BlobInfo) int64 {
	var total int64
	for _, info := range infos {
		total += info.Size
	}
	return total
}

func checkID(id int) error {
	if id < 0 {
		return fmt.Errorf("invalid blob identifier %d", id)
	}
	return nil
}
