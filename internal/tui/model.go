package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/blobprobe/blobprobe/internal/config"
	"github.com/blobprobe/blobprobe/internal/core"
	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/registry"
)

type UIState int //Defines UIState as int to be used in rootModel

const (
	DashboardState     UIState = iota //DashboardState is 0 increments after each line
	ConfirmDeleteState                //ConfirmDeleteState is 1
	SettingsState                     //SettingsState is 2
)

// FinishedLinger is how long a finished download stays in the activity pane.
const FinishedLinger = 5 * time.Second

type DownloadModel struct {
	DownloadID string
	BlobID     int
	SizeMB     int
	URL        string
	Total      int64
	Loaded     int64
	Speed      float64

	StartTime  time.Time
	Elapsed    time.Duration
	FinishedAt time.Time

	progress progress.Model

	// Hybrid architecture: atomic state + polling reporter
	state    *types.ProgressState
	reporter *ProgressReporter

	done bool
	err  error
}

type RootModel struct {
	Service  core.BlobService
	Settings *config.Settings

	ctx        context.Context
	events     <-chan any // Channel for events only (start/complete/error)
	stopEvents func()

	blobs        []registry.BlobInfo
	downloads    []*DownloadModel
	SpeedHistory []float64

	width  int
	height int
	state  UIState
	help   help.Model

	// Navigation
	cursor int

	pendingDelete int
	status        string
	statusErr     bool

	// Settings panel
	SettingsActiveTab   int
	SettingsSelectedRow int
}

// NewDownloadModel creates a download model. A nil state means progress arrives only as events.
func NewDownloadModel(downloadID string, blobID, sizeMB int, url string, total int64, state *types.ProgressState) *DownloadModel {
	d := &DownloadModel{
		DownloadID: downloadID,
		BlobID:     blobID,
		SizeMB:     sizeMB,
		URL:        url,
		Total:      total,
		StartTime:  time.Now(),
		progress:   progress.New(progress.WithDefaultGradient()),
		state:      state,
	}
	if state != nil {
		d.StartTime = state.StartTime
		d.reporter = NewProgressReporter(state)
	}
	return d
}

// InitialRootModel subscribes to the service's events. The subscription ends with ctx.
func InitialRootModel(ctx context.Context, service core.BlobService, settings *config.Settings) (RootModel, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}

	events, stop, err := service.StreamEvents(ctx)
	if err != nil {
		return RootModel{}, err
	}

	return RootModel{
		Service:      service,
		Settings:     settings,
		ctx:          ctx,
		events:       events,
		stopEvents:   stop,
		downloads:    make([]*DownloadModel, 0),
		SpeedHistory: make([]float64, SpeedHistoryLength),
		state:        DashboardState,
		help:         help.New(),
	}, nil
}

func (m RootModel) Init() tea.Cmd {
	return tea.Batch(
		listenForActivity(m.events),
		m.refreshCmd(),
		tickCmd(),
	)
}

// eventsClosedMsg is delivered once when the event stream ends.
type eventsClosedMsg struct{}

func listenForActivity(sub <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return eventsClosedMsg{}
		}
		return msg
	}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type blobsLoadedMsg struct {
	blobs []registry.BlobInfo
	err   error
}

type downloadDoneMsg struct {
	ID     int
	SizeMB int
	Err    error
}

type removedMsg struct {
	ID  int
	Err error
}

func (m RootModel) refreshCmd() tea.Cmd {
	service, ctx := m.Service, m.ctx
	return func() tea.Msg {
		blobs, err := service.List(ctx)
		return blobsLoadedMsg{blobs: blobs, err: err}
	}
}

func (m RootModel) downloadCmd(sizeMB int) tea.Cmd {
	service, ctx := m.Service, m.ctx
	return func() tea.Msg {
		id, err := service.Download(ctx, sizeMB)
		return downloadDoneMsg{ID: id, SizeMB: sizeMB, Err: err}
	}
}

func (m RootModel) removeCmd(id int) tea.Cmd {
	service, ctx := m.Service, m.ctx
	return func() tea.Msg {
		return removedMsg{ID: id, Err: service.Remove(ctx, id)}
	}
}

// SelectedBlob returns the blob under the cursor, or nil when the list is empty.
func (m RootModel) SelectedBlob() *registry.BlobInfo {
	if m.cursor < 0 || m.cursor >= len(m.blobs) {
		return nil
	}
	return &m.blobs[m.cursor]
}

func (m RootModel) findDownload(downloadID string) *DownloadModel {
	for _, d := range m.downloads {
		if d.DownloadID == downloadID {
			return d
		}
	}
	return nil
}
