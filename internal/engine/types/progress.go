package types

import (
	"sync/atomic"
	"time"
)

// ProgressState is the observable progress of one download.
// The read loop stores into it; the TUI and status queries poll it.
type ProgressState struct {
	DownloadID string
	BlobID     int
	SizeMB     int
	URL        string

	Loaded    atomic.Int64
	Total     atomic.Int64
	StartTime time.Time
}

// NewProgressState creates a progress state for a download that starts now
func NewProgressState(downloadID string, blobID, sizeMB int) *ProgressState {
	ps := &ProgressState{
		DownloadID: downloadID,
		BlobID:     blobID,
		SizeMB:     sizeMB,
		StartTime:  time.Now(),
	}
	ps.Total.Store(int64(sizeMB) * MB)
	return ps
}

// Update records the latest event.
func (ps *ProgressState) Update(ev ProgressEvent) {
	ps.Total.Store(ev.Total)
	ps.Loaded.Store(ev.Loaded)
}

// Event returns the latest snapshot.
func (ps *ProgressState) Event() ProgressEvent {
	return ProgressEvent{Loaded: ps.Loaded.Load(), Total: ps.Total.Load()}
}

// Status builds a DownloadStatus from the current counters.
func (ps *ProgressState) Status() DownloadStatus {
	ev := ps.Event()
	st := DownloadStatus{
		DownloadID: ps.DownloadID,
		BlobID:     ps.BlobID,
		URL:        ps.URL,
		SizeMB:     ps.SizeMB,
		Total:      ev.Total,
		Loaded:     ev.Loaded,
		Progress:   ev.Fraction() * 100,
		StartedAt:  ps.StartTime.Unix(),
	}
	if elapsed := time.Since(ps.StartTime).Seconds(); elapsed > 0 {
		st.Speed = float64(ev.Loaded) / elapsed
	}
	return st
}
