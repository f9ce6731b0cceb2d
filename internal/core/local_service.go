package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blobprobe/blobprobe/internal/engine/events"
	"github.com/blobprobe/blobprobe/internal/engine/fetch"
	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/metrics"
	"github.com/blobprobe/blobprobe/internal/registry"
	"github.com/blobprobe/blobprobe/internal/utils"
)

// ErrInvalidRequest is returned for a negative identifier or a non-positive size.
var ErrInvalidRequest = types.ErrInvalidRequest

// ErrIdentifierBusy is returned when another download in this process is writing the same identifier.
var ErrIdentifierBusy = errors.New("a download for this identifier is already running")

// ErrShutdown is returned by operations started after Shutdown.
var ErrShutdown = errors.New("service is shut down")

// Fetcher is the part of *fetch.Fetcher the service needs.
type Fetcher interface {
	URL(sizeMB int) (string, error)
	Fetch(ctx context.Context, sizeMB int, onProgress types.ProgressFunc) (*fetch.Result, error)
}

// LocalBlobService runs downloads in-process and stores them in a registry.
type LocalBlobService struct {
	reg     registry.Registry
	fetcher Fetcher

	// ProgressInterval throttles ProgressMsg events. The observable state is updated on every chunk.
	ProgressInterval time.Duration

	mu       sync.Mutex
	active   map[string]*types.ProgressState
	reserved map[int]string // identifier -> download ID
	closed   bool

	listenerMu sync.Mutex
	listeners  map[chan any]struct{}
}

// NewLocalBlobService creates a service storing into reg. The service owns reg.
func NewLocalBlobService(reg registry.Registry, fetcher Fetcher) *LocalBlobService {
	return &LocalBlobService{
		reg:              reg,
		fetcher:          fetcher,
		ProgressInterval: types.ProgressEventInterval,
		active:           make(map[string]*types.ProgressState),
		reserved:         make(map[int]string),
		listeners:        make(map[chan any]struct{}),
	}
}

// Registry returns the underlying registry.
func (s *LocalBlobService) Registry() registry.Registry {
	return s.reg
}

func (s *LocalBlobService) List(ctx context.Context) ([]registry.BlobInfo, error) {
	return s.reg.List(ctx)
}

func (s *LocalBlobService) Get(ctx context.Context, id int) ([]byte, error) {
	return s.reg.Get(ctx, id)
}

func (s *LocalBlobService) Remove(ctx context.Context, id int) error {
	if err := s.reg.Delete(ctx, id); err != nil {
		return err
	}
	utils.Debug("Removed blob %d", id)
	_ = s.Publish(events.BlobRemovedMsg{BlobID: id})
	_ = s.Publish(events.BlobsChangedMsg{})
	return nil
}

// Download picks max(stored keys, in-flight identifiers) + 1, or 0 when both are empty.
func (s *LocalBlobService) Download(ctx context.Context, sizeMB int) (int, error) {
	if sizeMB <= 0 {
		return 0, fmt.Errorf("%w: size %d MB must be positive", ErrInvalidRequest, sizeMB)
	}

	downloadID := uuid.New().String()

	// Keys is read under s.mu: a download that stores its blob releases its
	// reservation under s.mu too, so the blob shows up in one of the two.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrShutdown
	}
	keys, err := s.reg.Keys(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("failed to list registry keys: %w", err)
	}
	for id := range s.reserved {
		keys = append(keys, id)
	}
	id := NextIdentifier(keys)
	s.reserved[id] = downloadID
	s.mu.Unlock()

	return id, s.run(ctx, downloadID, types.DownloadRequest{ID: id, SizeMB: sizeMB})
}

func (s *LocalBlobService) DownloadAndStore(ctx context.Context, id, sizeMB int) error {
	req := types.DownloadRequest{ID: id, SizeMB: sizeMB}
	if err := req.Validate(); err != nil {
		return err
	}

	downloadID := uuid.New().String()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrShutdown
	}
	if _, busy := s.reserved[id]; busy {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIdentifierBusy, id)
	}
	s.reserved[id] = downloadID
	s.mu.Unlock()

	return s.run(ctx, downloadID, req)
}

// run fetches and stores one request whose identifier is already reserved.
func (s *LocalBlobService) run(ctx context.Context, downloadID string, req types.DownloadRequest) error {
	state := types.NewProgressState(downloadID, req.ID, req.SizeMB)
	if url, err := s.fetcher.URL(req.SizeMB); err == nil {
		state.URL = url
	}

	s.mu.Lock()
	s.active[downloadID] = state
	s.mu.Unlock()
	metrics.ActiveDownloads.Inc()

	utils.Debug("Download %s started: blob %d, %d MB", downloadID, req.ID, req.SizeMB)
	_ = s.Publish(events.DownloadStartedMsg{
		DownloadID: downloadID,
		BlobID:     req.ID,
		SizeMB:     req.SizeMB,
		URL:        state.URL,
		Total:      state.Total.Load(),
		State:      state,
	})

	var lastEmit time.Time
	onProgress := func(ev types.ProgressEvent) {
		state.Update(ev)
		now := time.Now()
		if now.Sub(lastEmit) < s.ProgressInterval && ev.Loaded < ev.Total {
			return
		}
		lastEmit = now
		elapsed := now.Sub(state.StartTime)
		var speed float64
		if elapsed > 0 {
			speed = float64(ev.Loaded) / elapsed.Seconds()
		}
		_ = s.Publish(events.ProgressMsg{
			DownloadID: downloadID,
			BlobID:     req.ID,
			Loaded:     ev.Loaded,
			Total:      ev.Total,
			Speed:      speed,
			Elapsed:    elapsed,
		})
	}

	res, err := s.fetcher.Fetch(ctx, req.SizeMB, onProgress)
	if err == nil {
		if setErr := s.reg.Set(ctx, req.ID, res.Data); setErr != nil {
			err = fmt.Errorf("failed to store blob %d: %w", req.ID, setErr)
		}
	}

	// Progress is cleared on every outcome before anyone hears about it
	s.finish(downloadID, req.ID)

	if err != nil {
		utils.Debug("Download %s failed: %v", downloadID, err)
		_ = s.Publish(events.DownloadErrorMsg{DownloadID: downloadID, BlobID: req.ID, Err: err})
		_ = s.Publish(events.BlobsChangedMsg{})
		return err
	}

	info, statErr := s.reg.Stat(ctx, req.ID)
	if statErr != nil {
		utils.Debug("Download %s: stat after store failed: %v", downloadID, statErr)
		info = registry.NewBlobInfo(req.ID, res.Data)
	}

	utils.Debug("Download %s stored blob %d (%s)", downloadID, req.ID,
		utils.ConvertBytesToHumanReadable(info.Size))
	_ = s.Publish(events.DownloadCompleteMsg{
		DownloadID: downloadID,
		BlobID:     req.ID,
		Size:       info.Size,
		SHA256:     info.SHA256,
		Elapsed:    res.Elapsed,
	})
	_ = s.Publish(events.BlobsChangedMsg{})
	return nil
}

func (s *LocalBlobService) finish(downloadID string, id int) {
	s.mu.Lock()
	delete(s.active, downloadID)
	if s.reserved[id] == downloadID {
		delete(s.reserved, id)
	}
	s.mu.Unlock()
	metrics.ActiveDownloads.Dec()
}

// Active returns running downloads ordered by start time.
func (s *LocalBlobService) Active() []types.DownloadStatus {
	s.mu.Lock()
	statuses := make([]types.DownloadStatus, 0, len(s.active))
	for _, state := range s.active {
		statuses = append(statuses, state.Status())
	}
	s.mu.Unlock()

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].StartedAt != statuses[j].StartedAt {
			return statuses[i].StartedAt < statuses[j].StartedAt
		}
		return statuses[i].BlobID < statuses[j].BlobID
	})
	return statuses
}

// ActiveStates returns the live progress states for polling.
func (s *LocalBlobService) ActiveStates() []*types.ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]*types.ProgressState, 0, len(s.active))
	for _, state := range s.active {
		states = append(states, state)
	}
	return states
}

func (s *LocalBlobService) StreamEvents(ctx context.Context) (<-chan any, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, ErrShutdown
	}

	ch := make(chan any, types.ProgressChannelBuffer)
	s.listenerMu.Lock()
	s.listeners[ch] = struct{}{}
	s.listenerMu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.listenerMu.Lock()
			if _, ok := s.listeners[ch]; ok {
				delete(s.listeners, ch)
				close(ch)
			}
			s.listenerMu.Unlock()
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()

	return ch, cleanup, nil
}

// Publish delivers msg to every subscriber. Slow subscribers miss messages rather than block downloads.
func (s *LocalBlobService) Publish(msg any) error {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	for ch := range s.listeners {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full
		}
	}
	return nil
}

func (s *LocalBlobService) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.listenerMu.Lock()
	for ch := range s.listeners {
		delete(s.listeners, ch)
		close(ch)
	}
	s.listenerMu.Unlock()

	return s.reg.Close()
}
