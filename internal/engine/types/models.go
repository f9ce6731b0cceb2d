package types

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned for requests with a negative identifier or a non-positive size.
var ErrInvalidRequest = errors.New("invalid download request")

// DownloadRequest names the blob to create and how large a payload to ask the server for.
type DownloadRequest struct {
	ID     int `json:"id"`
	SizeMB int `json:"size_mb"`
}

// Validate checks the identifier and size ranges.
func (r DownloadRequest) Validate() error {
	if r.ID < 0 {
		return fmt.Errorf("%w: identifier %d is negative", ErrInvalidRequest, r.ID)
	}
	if r.SizeMB <= 0 {
		return fmt.Errorf("%w: size %d MB must be positive", ErrInvalidRequest, r.SizeMB)
	}
	return nil
}

// Bytes is the requested size converted to bytes (1 MB = 1 MiB).
func (r DownloadRequest) Bytes() int64 {
	return int64(r.SizeMB) * MB
}

// ProgressEvent is a byte-level snapshot of one fetch. Each event supersedes the previous one.
type ProgressEvent struct {
	Loaded int64 `json:"loaded"`
	Total  int64 `json:"total"`
}

// Fraction returns loaded/total clamped to [0, 1]; 0 when the total is unknown.
func (e ProgressEvent) Fraction() float64 {
	if e.Total <= 0 {
		return 0
	}
	f := float64(e.Loaded) / float64(e.Total)
	if f > 1 {
		return 1
	}
	return f
}

// ProgressFunc receives progress events synchronously from the read loop.
type ProgressFunc func(ProgressEvent)

// DownloadStatus represents the transient status of an active download
type DownloadStatus struct {
	DownloadID string  `json:"download_id"`
	BlobID     int     `json:"blob_id"`
	URL        string  `json:"url"`
	SizeMB     int     `json:"size_mb"`
	Total      int64   `json:"total"`
	Loaded     int64   `json:"loaded"`
	Progress   float64 `json:"progress"` // Percentage 0-100
	Speed      float64 `json:"speed"`    // Bytes per second
	StartedAt  int64   `json:"started_at"`
}
