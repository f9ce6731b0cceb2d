package core

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobprobe/blobprobe/internal/engine/events"
	"github.com/blobprobe/blobprobe/internal/engine/fetch"
	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/registry"
	"github.com/blobprobe/blobprobe/internal/testutil"
)

// fakeFetcher serves sizeMB*unit bytes in fixed chunks and can block until released.
type fakeFetcher struct {
	unit    int
	chunk   int
	err     error
	release chan struct{}
	started chan struct{}
}

func (f *fakeFetcher) URL(sizeMB int) (string, error) {
	return "http://fake/download/" + registry.Key(sizeMB) + "mb", nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, sizeMB int, onProgress types.ProgressFunc) (*fetch.Result, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	total := sizeMB * f.unit
	data := make([]byte, 0, total)
	for loaded := 0; loaded < total; {
		n := f.chunk
		if total-loaded < n {
			n = total - loaded
		}
		data = append(data, make([]byte, n)...)
		loaded += n
		if onProgress != nil {
			onProgress(types.ProgressEvent{Loaded: int64(loaded), Total: int64(total)})
		}
	}
	return &fetch.Result{Data: data, Total: int64(total)}, nil
}

func newService(f Fetcher) (*LocalBlobService, registry.Registry) {
	reg := registry.NewMemory()
	svc := NewLocalBlobService(reg, f)
	svc.ProgressInterval = 0
	return svc, reg
}

func collect(ch <-chan any) []any {
	var out []any
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestNextIdentifier(t *testing.T) {
	assert.Equal(t, 6, NextIdentifier([]int{0, 3, 5}))
	assert.Equal(t, 6, NextIdentifier([]int{5, 3, 0}))
	assert.Equal(t, 0, NextIdentifier(nil))
	assert.Equal(t, 0, NextIdentifier([]int{}))
	assert.Equal(t, 1, NextIdentifier([]int{0}))
}

func TestDownload_AssignsNextIdentifier(t *testing.T) {
	svc, reg := newService(&fakeFetcher{unit: 16, chunk: 8})
	ctx := context.Background()

	id, err := svc.Download(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, id)

	for _, k := range []int{3, 5} {
		require.NoError(t, reg.Set(ctx, k, []byte("x")))
	}
	id, err = svc.Download(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, id)

	got, err := svc.Get(ctx, 6)
	require.NoError(t, err)
	assert.Len(t, got, 32)
}

func TestDownloadAndStore_StoresAndPublishes(t *testing.T) {
	svc, _ := newService(&fakeFetcher{unit: 100, chunk: 30})
	ctx := context.Background()

	ch, cleanup, err := svc.StreamEvents(ctx)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, svc.DownloadAndStore(ctx, 4, 1))

	msgs := collect(ch)
	require.NotEmpty(t, msgs)

	started, ok := msgs[0].(events.DownloadStartedMsg)
	require.True(t, ok, "first event should be DownloadStartedMsg, got %T", msgs[0])
	assert.Equal(t, 4, started.BlobID)
	assert.NotEmpty(t, started.DownloadID)

	var progress []events.ProgressMsg
	var complete *events.DownloadCompleteMsg
	changed := 0
	for _, msg := range msgs {
		switch m := msg.(type) {
		case events.ProgressMsg:
			progress = append(progress, m)
		case events.DownloadCompleteMsg:
			complete = &m
		case events.BlobsChangedMsg:
			changed++
		case events.DownloadErrorMsg:
			t.Fatalf("unexpected error event: %v", m.Err)
		}
	}

	require.Len(t, progress, 4) // 30, 60, 90, 100
	assert.Equal(t, int64(100), progress[3].Loaded)
	require.NotNil(t, complete)
	assert.Equal(t, int64(100), complete.Size)
	assert.Equal(t, registry.NewBlobInfo(4, make([]byte, 100)).SHA256, complete.SHA256)
	assert.Equal(t, 1, changed)
	assert.Empty(t, svc.Active())
}

func TestDownloadAndStore_InvalidRequest(t *testing.T) {
	svc, _ := newService(&fakeFetcher{unit: 1, chunk: 1})
	ctx := context.Background()

	assert.ErrorIs(t, svc.DownloadAndStore(ctx, -1, 1), ErrInvalidRequest)
	assert.ErrorIs(t, svc.DownloadAndStore(ctx, 1, 0), ErrInvalidRequest)
	_, err := svc.Download(ctx, -5)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDownloadAndStore_FailureClearsProgress(t *testing.T) {
	boom := &fetch.TransportError{Status: 500, StatusText: "Internal Server Error"}
	svc, reg := newService(&fakeFetcher{err: boom})
	ctx := context.Background()

	ch, cleanup, err := svc.StreamEvents(ctx)
	require.NoError(t, err)
	defer cleanup()

	err = svc.DownloadAndStore(ctx, 2, 1)
	var te *fetch.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 500, te.Status)

	assert.Empty(t, svc.Active())
	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	var gotErr bool
	for _, msg := range collect(ch) {
		if m, ok := msg.(events.DownloadErrorMsg); ok {
			gotErr = true
			assert.Equal(t, 2, m.BlobID)
			assert.ErrorAs(t, m.Err, &te)
		}
	}
	assert.True(t, gotErr, "expected a DownloadErrorMsg")

	// The identifier is free again
	svc.fetcher = &fakeFetcher{unit: 4, chunk: 4}
	require.NoError(t, svc.DownloadAndStore(ctx, 2, 1))
}

func TestDownloadAndStore_QuotaErrorLeavesRegistry(t *testing.T) {
	reg := registry.WithQuota(registry.NewMemory(), 10)
	svc := NewLocalBlobService(reg, &fakeFetcher{unit: 64, chunk: 64})
	ctx := context.Background()

	err := svc.DownloadAndStore(ctx, 0, 1)
	var qe *registry.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, int64(64), qe.Size)

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, svc.Active())
}

func TestDownloadAndStore_Replaces(t *testing.T) {
	svc, reg := newService(&fakeFetcher{unit: 8, chunk: 8})
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 1, []byte("old")))
	require.NoError(t, svc.DownloadAndStore(ctx, 1, 2))

	got, err := reg.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 16)
}

func TestActive_TracksRunningDownload(t *testing.T) {
	f := &fakeFetcher{unit: 8, chunk: 8, release: make(chan struct{}), started: make(chan struct{}, 1)}
	svc, _ := newService(f)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- svc.DownloadAndStore(ctx, 7, 3) }()
	<-f.started

	active := svc.Active()
	require.Len(t, active, 1)
	assert.Equal(t, 7, active[0].BlobID)
	assert.Equal(t, 3, active[0].SizeMB)
	assert.Equal(t, int64(3*types.MB), active[0].Total)
	assert.Equal(t, "http://fake/download/3mb", active[0].URL)
	require.Len(t, svc.ActiveStates(), 1)

	// Same identifier is refused while in flight
	assert.ErrorIs(t, svc.DownloadAndStore(ctx, 7, 1), ErrIdentifierBusy)

	close(f.release)
	require.NoError(t, <-done)
	assert.Empty(t, svc.Active())
}

func TestDownload_ConcurrentIdentifiersAreUnique(t *testing.T) {
	f := &fakeFetcher{unit: 4, chunk: 4, release: make(chan struct{}), started: make(chan struct{}, 8)}
	svc, reg := newService(f)
	ctx := context.Background()
	require.NoError(t, reg.Set(ctx, 2, []byte("x")))

	const n = 5
	var wg sync.WaitGroup
	ids := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.Download(ctx, 1)
			assert.NoError(t, err)
			ids <- id
		}()
	}
	for i := 0; i < n; i++ {
		<-f.started
	}
	close(f.release)
	wg.Wait()
	close(ids)

	seen := map[int]bool{}
	for id := range ids {
		assert.False(t, seen[id], "identifier %d assigned twice", id)
		assert.Greater(t, id, 2)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestDownload_ContextCancelled(t *testing.T) {
	f := &fakeFetcher{unit: 4, chunk: 4, release: make(chan struct{}), started: make(chan struct{}, 1)}
	svc, reg := newService(f)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Download(ctx, 1)
		done <- err
	}()
	<-f.started
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, svc.Active())
	keys, err := reg.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// keysHookRegistry lets a test act between Keys reading the store and returning.
type keysHookRegistry struct {
	registry.Registry
	onKeys func(keys []int) []int
}

func (r *keysHookRegistry) Keys(ctx context.Context) ([]int, error) {
	keys, err := r.Registry.Keys(ctx)
	if err == nil && r.onKeys != nil {
		keys = r.onKeys(keys)
	}
	return keys, err
}

func TestDownload_DoesNotReuseIdentifierFinishingDuringKeys(t *testing.T) {
	f := &fakeFetcher{unit: 4, chunk: 4, release: make(chan struct{}), started: make(chan struct{}, 2)}
	reg := &keysHookRegistry{Registry: registry.NewMemory()}
	svc := NewLocalBlobService(reg, f)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- svc.DownloadAndStore(ctx, 0, 1) }()
	<-f.started

	// The explicit download gets every chance to store and release 0 after the keys were read
	reg.onKeys = func(keys []int) []int {
		close(f.release)
		select {
		case err := <-first:
			first <- err
		case <-time.After(200 * time.Millisecond):
		}
		return keys
	}

	id, err := svc.Download(ctx, 1)
	reg.onKeys = nil
	require.NoError(t, err)
	require.NoError(t, <-first)
	assert.Equal(t, 1, id)

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, keys)
}

func TestRemove_PublishesAndIsIdempotent(t *testing.T) {
	svc, reg := newService(&fakeFetcher{unit: 1, chunk: 1})
	ctx := context.Background()
	require.NoError(t, reg.Set(ctx, 3, []byte("three")))

	ch, cleanup, err := svc.StreamEvents(ctx)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, svc.Remove(ctx, 3))
	require.NoError(t, svc.Remove(ctx, 3))

	_, err = svc.Get(ctx, 3)
	assert.ErrorIs(t, err, registry.ErrNotFound)

	msgs := collect(ch)
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, events.BlobRemovedMsg{BlobID: 3}, msgs[0])
	assert.Equal(t, events.BlobsChangedMsg{}, msgs[1])
}

func TestStreamEvents_ClosedOnContextDone(t *testing.T) {
	svc, _ := newService(&fakeFetcher{})
	ctx, cancel := context.WithCancel(context.Background())

	ch, _, err := svc.StreamEvents(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after context cancellation")
	}
}

func TestShutdown(t *testing.T) {
	svc, _ := newService(&fakeFetcher{unit: 1, chunk: 1})
	ch, cleanup, err := svc.StreamEvents(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.Shutdown())
	_, ok := <-ch
	assert.False(t, ok)
	cleanup() // Safe after shutdown
	require.NoError(t, svc.Shutdown())

	assert.ErrorIs(t, svc.DownloadAndStore(context.Background(), 0, 1), ErrShutdown)
	_, _, err = svc.StreamEvents(context.Background())
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestLocalService_WithHTTPFetcher(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithUnitSize(4*1024), testutil.WithRandomData(true))
	f := fetch.NewFetcher(&types.RuntimeConfig{BaseURL: server.URL()})
	svc, reg := newService(f)
	ctx := context.Background()

	id, err := svc.Download(ctx, 5)
	require.NoError(t, err)

	got, err := reg.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, server.Payload(5), got)
}

func TestLocalService_NotFoundLeavesRegistryUnchanged(t *testing.T) {
	server := testutil.NewMockServerT(t, testutil.WithStatus(http.StatusNotFound))
	f := fetch.NewFetcher(&types.RuntimeConfig{BaseURL: server.URL()})
	svc, reg := newService(f)
	ctx := context.Background()
	require.NoError(t, reg.Set(ctx, 0, []byte("existing")))

	err := svc.DownloadAndStore(ctx, 1, 1)
	var te *fetch.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.Status)

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, keys)
	assert.Empty(t, svc.Active())
}
