package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/blobprobe/blobprobe/internal/engine/events"
	"github.com/blobprobe/blobprobe/internal/engine/types"
)

// progressPollMsg is a progress snapshot read from the shared state rather than the event stream.
type progressPollMsg struct {
	events.ProgressMsg
}

// ProgressReporter polls a download's atomic state at TickInterval.
type ProgressReporter struct {
	state *types.ProgressState
}

func NewProgressReporter(state *types.ProgressState) *ProgressReporter {
	return &ProgressReporter{state: state}
}

// PollCmd reads the state once after TickInterval.
func (r *ProgressReporter) PollCmd() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return progressPollMsg{r.Snapshot(t)}
	})
}

// Snapshot converts the current counters into a ProgressMsg.
func (r *ProgressReporter) Snapshot(now time.Time) events.ProgressMsg {
	ev := r.state.Event()
	elapsed := now.Sub(r.state.StartTime)
	var speed float64
	if elapsed > 0 {
		speed = float64(ev.Loaded) / elapsed.Seconds()
	}
	return events.ProgressMsg{
		DownloadID: r.state.DownloadID,
		BlobID:     r.state.BlobID,
		Loaded:     ev.Loaded,
		Total:      ev.Total,
		Speed:      speed,
		Elapsed:    elapsed,
	}
}
