package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vfaronov/httpheader"

	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/metrics"
	"github.com/blobprobe/blobprobe/internal/utils"
)

// Doer is the part of *http.Client the fetcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads a payload with a single sequential read loop and reports byte progress.
type Fetcher struct {
	Client  Doer
	Runtime *types.RuntimeConfig
}

// Result is a completed fetch.
type Result struct {
	Data     []byte
	URL      string
	Total    int64 // Advisory total used for progress ratios
	Declared Declared
	Filename string // From Content-Disposition, if the server sent one
	Elapsed  time.Duration
}

// NewFetcher creates a fetcher with a client configured from runtime
func NewFetcher(runtime *types.RuntimeConfig) *Fetcher {
	return &Fetcher{
		Client:  NewClient(runtime),
		Runtime: runtime,
	}
}

// URL returns the payload URL for sizeMB.
func (f *Fetcher) URL(sizeMB int) (string, error) {
	return utils.DownloadURL(f.Runtime.GetBaseURL(), sizeMB)
}

// Fetch downloads the sizeMB payload into memory.
// onProgress is called synchronously after every non-empty chunk and never after Fetch returns.
func (f *Fetcher) Fetch(ctx context.Context, sizeMB int, onProgress types.ProgressFunc) (*Result, error) {
	res, err := f.fetch(ctx, sizeMB, onProgress)
	metrics.FetchTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	return res, err
}

func (f *Fetcher) fetch(ctx context.Context, sizeMB int, onProgress types.ProgressFunc) (*Result, error) {
	if sizeMB <= 0 {
		return nil, fmt.Errorf("%w: size %d MB must be positive", types.ErrInvalidRequest, sizeMB)
	}

	rawurl, err := f.URL(sizeMB)
	if err != nil {
		return nil, fmt.Errorf("failed to build download URL: %w", err)
	}
	utils.Debug("Fetching %s", rawurl)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.Runtime.GetUserAgent())

	resp, err := f.Client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{URL: rawurl, Err: err}
	}
	defer func() {
		if resp.Body == nil {
			return
		}
		if err := resp.Body.Close(); err != nil {
			utils.Debug("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			URL:        rawurl,
		}
	}

	if resp.Body == nil {
		return nil, ErrUnsupportedStream
	}

	declared := ParseHeaders(resp.Header, resp.Uncompressed)
	total := declared.ResolveTotal(sizeMB)
	utils.Debug("Response %d: encoding=%s content-length=%d x-file-size=%d total=%d",
		resp.StatusCode, declared.Encoding, declared.ContentLength, declared.FileSize, total)

	start := time.Now()

	var out bytes.Buffer
	if total > 0 && total <= types.MaxPrealloc {
		out.Grow(int(total))
	}

	var loaded int64
	buf := make([]byte, f.Runtime.GetReadBufferSize())

	for {
		// Check for context cancellation (allows clean shutdown)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			loaded += int64(n)
			metrics.FetchBytesTotal.Add(float64(n))
			if onProgress != nil {
				onProgress(types.ProgressEvent{Loaded: loaded, Total: total})
			}
			out.Write(buf[:n])
		}
		if readErr != nil {
			if readErr == io.EOF {
				break // Done reading
			}
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(readErr, ctxErr) {
				return nil, ctxErr
			}
			return nil, &TransportError{
				Status:     resp.StatusCode,
				StatusText: statusText(resp),
				URL:        rawurl,
				Err:        fmt.Errorf("read error after %d bytes: %w", loaded, readErr),
			}
		}
	}

	elapsed := time.Since(start)
	var speed float64
	if elapsed > 0 {
		speed = float64(loaded) / elapsed.Seconds()
	}
	utils.Debug("Fetched %s in %s (%s/s)",
		utils.ConvertBytesToHumanReadable(loaded),
		elapsed.Round(time.Millisecond),
		utils.ConvertBytesToHumanReadable(int64(speed)),
	)

	return &Result{
		Data:     out.Bytes(),
		URL:      rawurl,
		Total:    total,
		Declared: declared,
		Filename: dispositionFilename(resp.Header),
		Elapsed:  elapsed,
	}, nil
}

// statusText strips the numeric code from resp.Status ("404 Not Found" -> "Not Found").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func dispositionFilename(h http.Header) string {
	_, filename, _ := httpheader.ContentDisposition(h)
	return filename
}
