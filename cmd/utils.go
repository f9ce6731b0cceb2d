package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/blobprobe/blobprobe/internal/engine/events"
	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/registry"
)

// parseID reads a blob identifier argument.
func parseID(arg string) (int, error) {
	id, ok := registry.ParseKey(strings.TrimSpace(arg))
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer identifier", types.ErrInvalidRequest, arg)
	}
	return id, nil
}

// parseSizeArg reads a size in MB. A trailing "mb" is accepted so "500mb" matches the URL form.
func parseSizeArg(arg string) (int, error) {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(arg)), "mb")
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: size %q must be a positive number of MB", types.ErrInvalidRequest, arg)
	}
	return n, nil
}

// sizeFromArgs returns the size argument, or the configured default when none was given.
func sizeFromArgs(args []string) (int, error) {
	if len(args) == 0 {
		return settings.General.DefaultSizeMB, nil
	}
	return parseSizeArg(args[0])
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortDigest(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

// printEvents writes a line per download event to w until sub is closed.
// Progress lines overwrite each other with a carriage return.
func printEvents(w io.Writer, sub <-chan any, quiet bool) {
	progressShown := false
	endProgress := func() {
		if progressShown {
			fmt.Fprintln(w)
			progressShown = false
		}
	}

	for msg := range sub {
		switch m := msg.(type) {
		case events.DownloadStartedMsg:
			if quiet {
				continue
			}
			fmt.Fprintf(w, "Started: blob %d from %s\n", m.BlobID, m.URL)
		case events.ProgressMsg:
			if quiet {
				continue
			}
			pct := types.ProgressEvent{Loaded: m.Loaded, Total: m.Total}.Fraction() * 100
			fmt.Fprintf(w, "\rBlob %d: %s / %s (%.0f%%) %s/s   ",
				m.BlobID,
				humanize.IBytes(uint64(m.Loaded)),
				humanize.IBytes(uint64(m.Total)),
				pct,
				humanize.IBytes(uint64(m.Speed)),
			)
			progressShown = true
		case events.DownloadCompleteMsg:
			endProgress()
			if quiet {
				continue
			}
			fmt.Fprintf(w, "Completed: blob %d (%s in %s)\n", m.BlobID, humanize.IBytes(uint64(m.Size)), m.Elapsed.Round(time.Millisecond))
		case events.DownloadErrorMsg:
			endProgress()
			fmt.Fprintf(w, "Error: blob %d: %v\n", m.BlobID, m.Err)
		}
	}
	endProgress()
}
