package events

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/blobprobe/blobprobe/internal/engine/types"
)

// ProgressMsg represents a throttled progress update from a running download
type ProgressMsg struct {
	DownloadID string
	BlobID     int
	Loaded     int64
	Total      int64
	Speed      float64 // bytes per second
	Elapsed    time.Duration
}

// DownloadStartedMsg is sent once the identifier is reserved and the fetch begins
type DownloadStartedMsg struct {
	DownloadID string
	BlobID     int
	SizeMB     int
	URL        string
	Total      int64
	State      *types.ProgressState `json:"-"`
}

// DownloadCompleteMsg signals that the payload was fetched and stored
type DownloadCompleteMsg struct {
	DownloadID string
	BlobID     int
	Size       int64
	SHA256     string
	Elapsed    time.Duration
}

// DownloadErrorMsg signals that the fetch or the store failed. Nothing was stored.
type DownloadErrorMsg struct {
	DownloadID string
	BlobID     int
	Err        error
}

func (m DownloadErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		DownloadID string `json:"DownloadID"`
		BlobID     int    `json:"BlobID"`
		Err        string `json:"Err,omitempty"`
	}

	out := encoded{
		DownloadID: m.DownloadID,
		BlobID:     m.BlobID,
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}

	return json.Marshal(out)
}

func (m *DownloadErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		DownloadID string          `json:"DownloadID"`
		BlobID     int             `json:"BlobID"`
		Err        json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.DownloadID = aux.DownloadID
	m.BlobID = aux.BlobID
	m.Err = nil

	if len(aux.Err) == 0 {
		return nil
	}

	var errStr string
	if err := json.Unmarshal(aux.Err, &errStr); err == nil {
		if errStr != "" {
			m.Err = errors.New(errStr)
		}
		return nil
	}

	// Accept non-string payloads (e.g. {}) as their raw text
	raw := string(aux.Err)
	if raw != "" && raw != "null" {
		m.Err = errors.New(raw)
	}
	return nil
}

// BlobRemovedMsg is sent after a blob is deleted from the registry
type BlobRemovedMsg struct {
	BlobID int
}

// BlobsChangedMsg asks listeners to reload the blob list
type BlobsChangedMsg struct{}
