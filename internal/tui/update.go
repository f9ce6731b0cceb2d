package tui

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/blobprobe/blobprobe/internal/config"
	"github.com/blobprobe/blobprobe/internal/engine/events"
	"github.com/blobprobe/blobprobe/internal/utils"
)

// clipboardWrite is swapped out in tests.
var clipboardWrite = clipboard.WriteAll

// Update handles messages and updates the model
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case events.DownloadStartedMsg:
		if m.findDownload(msg.DownloadID) == nil {
			d := NewDownloadModel(msg.DownloadID, msg.BlobID, msg.SizeMB, msg.URL, msg.Total, msg.State)
			m.downloads = append(m.downloads, d)
			// Start polling for this download
			if d.reporter != nil {
				cmds = append(cmds, d.reporter.PollCmd())
			}
		}
		cmds = append(cmds, listenForActivity(m.events))

	case events.ProgressMsg:
		if d := m.findDownload(msg.DownloadID); d != nil {
			cmds = append(cmds, d.apply(msg))
		}
		cmds = append(cmds, listenForActivity(m.events))

	case progressPollMsg:
		// Progress from polling reporter
		if d := m.findDownload(msg.DownloadID); d != nil && !d.done {
			cmds = append(cmds, d.apply(msg.ProgressMsg))
			// Continue polling only if not done
			cmds = append(cmds, d.reporter.PollCmd())
		}

	case events.DownloadCompleteMsg:
		if d := m.findDownload(msg.DownloadID); d != nil {
			d.Loaded = msg.Size
			d.Total = msg.Size
			d.Elapsed = msg.Elapsed
			d.done = true
			d.FinishedAt = time.Now()
			// Set progress to 100%
			cmds = append(cmds, d.progress.SetPercent(1.0))
		}
		m.setStatus(fmt.Sprintf("Stored blob %d (%s)", msg.BlobID, humanize.IBytes(uint64(msg.Size))), false)
		cmds = append(cmds, listenForActivity(m.events))

	case events.DownloadErrorMsg:
		if d := m.findDownload(msg.DownloadID); d != nil {
			d.err = msg.Err
			d.done = true
			d.FinishedAt = time.Now()
		}
		m.setStatus(fmt.Sprintf("Blob %d failed: %v", msg.BlobID, msg.Err), true)
		cmds = append(cmds, listenForActivity(m.events))

	case events.BlobRemovedMsg, events.BlobsChangedMsg:
		cmds = append(cmds, m.refreshCmd(), listenForActivity(m.events))

	case eventsClosedMsg:
		utils.Debug("TUI event stream closed")

	case blobsLoadedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Failed to list blobs: %v", msg.err), true)
			break
		}
		m.blobs = msg.blobs
		if m.cursor >= len(m.blobs) {
			m.cursor = len(m.blobs) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}

	case downloadDoneMsg:
		// The complete/error events already set the status unless the request never started
		if msg.Err != nil && m.findDownloadByBlob(msg.ID) == nil {
			m.setStatus(fmt.Sprintf("Download failed: %v", msg.Err), true)
		}

	case removedMsg:
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("Failed to delete blob %d: %v", msg.ID, msg.Err), true)
		} else {
			m.setStatus(fmt.Sprintf("Deleted blob %d", msg.ID), false)
		}

	case tickMsg:
		m.SpeedHistory = append(m.SpeedHistory, m.calcTotalSpeed())
		if len(m.SpeedHistory) > SpeedHistoryLength {
			m.SpeedHistory = m.SpeedHistory[len(m.SpeedHistory)-SpeedHistoryLength:]
		}
		m.pruneFinished(time.Time(msg))
		cmds = append(cmds, tickCmd())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case DashboardState:
			return m.updateDashboard(msg)
		case ConfirmDeleteState:
			return m.updateConfirmDelete(msg)
		case SettingsState:
			return m.updateSettings(msg)
		}
	}

	// Propagate messages to progress bars
	for i := range m.downloads {
		var cmd tea.Cmd
		var newModel tea.Model
		newModel, cmd = m.downloads[i].progress.Update(msg)
		if p, ok := newModel.(progress.Model); ok {
			m.downloads[i].progress = p
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m RootModel) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, DashboardKeys.Quit):
		if m.stopEvents != nil {
			m.stopEvents()
		}
		return m, tea.Quit

	case key.Matches(msg, DashboardKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, DashboardKeys.Down):
		if m.cursor < len(m.blobs)-1 {
			m.cursor++
		}

	case key.Matches(msg, DashboardKeys.Download):
		sizeMB := m.Settings.General.DefaultSizeMB
		m.setStatus(fmt.Sprintf("Downloading %d MB...", sizeMB), false)
		utils.Debug("TUI requested a %d MB download", sizeMB)
		return m, m.downloadCmd(sizeMB)

	case key.Matches(msg, DashboardKeys.Delete):
		if b := m.SelectedBlob(); b != nil {
			m.pendingDelete = b.ID
			m.state = ConfirmDeleteState
		}

	case key.Matches(msg, DashboardKeys.Copy):
		if b := m.SelectedBlob(); b != nil {
			if err := clipboardWrite(b.SHA256); err != nil {
				m.setStatus(fmt.Sprintf("Clipboard unavailable: %v", err), true)
			} else {
				m.setStatus(fmt.Sprintf("Copied sha256 of blob %d", b.ID), false)
			}
		}

	case key.Matches(msg, DashboardKeys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(msg, DashboardKeys.Settings):
		m.state = SettingsState
		m.SettingsActiveTab = 0
		m.SettingsSelectedRow = 0

	case key.Matches(msg, DashboardKeys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m RootModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, ConfirmKeys.Yes):
		m.state = DashboardState
		return m, m.removeCmd(m.pendingDelete)
	case key.Matches(msg, ConfirmKeys.No):
		m.state = DashboardState
	}
	return m, nil
}

func (m RootModel) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	categories := config.CategoryOrder()
	switch {
	case key.Matches(msg, SettingsKeys.Close):
		m.state = DashboardState
	case key.Matches(msg, SettingsKeys.Tab):
		m.SettingsActiveTab = (m.SettingsActiveTab + 1) % len(categories)
		m.SettingsSelectedRow = 0
	case key.Matches(msg, SettingsKeys.Up):
		if m.SettingsSelectedRow > 0 {
			m.SettingsSelectedRow--
		}
	case key.Matches(msg, SettingsKeys.Down):
		if m.SettingsSelectedRow < m.getSettingsCount()-1 {
			m.SettingsSelectedRow++
		}
	}
	return m, nil
}

// apply records a progress snapshot and returns the progress bar animation.
func (d *DownloadModel) apply(msg events.ProgressMsg) tea.Cmd {
	// Don't update if already done
	if d.done {
		return nil
	}
	d.Loaded = msg.Loaded
	d.Total = msg.Total
	d.Speed = msg.Speed
	d.Elapsed = msg.Elapsed
	if d.Total > 0 {
		return d.progress.SetPercent(float64(d.Loaded) / float64(d.Total))
	}
	return nil
}

func (m *RootModel) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m RootModel) findDownloadByBlob(id int) *DownloadModel {
	for _, d := range m.downloads {
		if d.BlobID == id {
			return d
		}
	}
	return nil
}

// pruneFinished drops downloads that finished more than FinishedLinger before now.
func (m *RootModel) pruneFinished(now time.Time) {
	kept := make([]*DownloadModel, 0, len(m.downloads))
	for _, d := range m.downloads {
		if d.done && now.Sub(d.FinishedAt) > FinishedLinger {
			continue
		}
		kept = append(kept, d)
	}
	m.downloads = kept
}
