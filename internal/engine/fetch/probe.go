package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/utils"
)

// ProbeResult contains what the server declares about a payload without downloading it
type ProbeResult struct {
	URL           string   `json:"url"`
	Status        int      `json:"status"`
	SupportsRange bool     `json:"supports_range"`
	Declared      Declared `json:"declared"`
	Total         int64    `json:"total"` // What Fetch would use as its progress total
	Filename      string   `json:"filename,omitempty"`
	ContentType   string   `json:"content_type,omitempty"`
}

// Probe sends GET with Range: bytes=0-0 and reads the size headers.
// A 206 reply reports the full size in Content-Range, which stands in for Content-Length.
func (f *Fetcher) Probe(ctx context.Context, sizeMB int) (*ProbeResult, error) {
	if sizeMB <= 0 {
		return nil, fmt.Errorf("%w: size %d MB must be positive", types.ErrInvalidRequest, sizeMB)
	}

	rawurl, err := f.URL(sizeMB)
	if err != nil {
		return nil, fmt.Errorf("failed to build download URL: %w", err)
	}
	utils.Debug("Probing server: %s", rawurl)

	probeCtx, cancel := context.WithTimeout(ctx, types.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe request: %w", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", f.Runtime.GetUserAgent())

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: rawurl, Err: err}
	}
	defer func() {
		// Closing without draining drops the connection, which is what we want for a large body
		if resp.Body != nil {
			resp.Body.Close()
		}
	}()

	utils.Debug("Probe response status: %d", resp.StatusCode)

	result := &ProbeResult{
		URL:         rawurl,
		Status:      resp.StatusCode,
		Declared:    ParseHeaders(resp.Header, resp.Uncompressed),
		Filename:    dispositionFilename(resp.Header),
		ContentType: resp.Header.Get("Content-Type"),
	}

	switch resp.StatusCode {
	case http.StatusPartialContent: // 206
		result.SupportsRange = true
		// Parse Content-Range: bytes 0-0/TOTAL
		contentRange := resp.Header.Get("Content-Range")
		utils.Debug("Content-Range header: %s", contentRange)
		result.Declared.ContentLength = -1
		if idx := strings.LastIndex(contentRange, "/"); idx != -1 {
			if size, err := strconv.ParseInt(contentRange[idx+1:], 10, 64); err == nil && size >= 0 {
				result.Declared.ContentLength = size
			}
		}

	case http.StatusOK: // 200 - server ignores Range header
		result.SupportsRange = false

	default:
		return nil, &TransportError{
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			URL:        rawurl,
		}
	}

	result.Total = result.Declared.ResolveTotal(sizeMB)

	utils.Debug("Probe complete - size: %d, encoding: %s, range: %v",
		result.Total, result.Declared.Encoding, result.SupportsRange)

	return result, nil
}
