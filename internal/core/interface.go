package core

import (
	"context"

	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/registry"
)

// BlobService is what the CLI and the TUI drive: downloads that end up in the registry,
// and the listing and deletion of what is stored.
type BlobService interface {
	// List returns metadata for every stored blob, sorted by identifier.
	List(ctx context.Context) ([]registry.BlobInfo, error)

	// Get returns the bytes stored under id.
	Get(ctx context.Context, id int) ([]byte, error)

	// Remove deletes id. Removing an absent identifier succeeds.
	Remove(ctx context.Context, id int) error

	// Download fetches sizeMB under the next free identifier and returns that identifier.
	Download(ctx context.Context, sizeMB int) (int, error)

	// DownloadAndStore fetches sizeMB and stores it under id, replacing any blob already there.
	DownloadAndStore(ctx context.Context, id, sizeMB int) error

	// Active returns a snapshot of every running download.
	Active() []types.DownloadStatus

	// StreamEvents returns a channel of events from internal/engine/events and a function
	// that unsubscribes. The channel is closed when ctx ends or the service shuts down.
	StreamEvents(ctx context.Context) (<-chan any, func(), error)

	// Publish emits an event into the service's event stream.
	Publish(msg any) error

	// Shutdown closes every event stream and the registry.
	Shutdown() error
}
