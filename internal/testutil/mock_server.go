// Package testutil provides testing utilities for blobprobe.
package testutil

import (
	"bytes"
	"compress/gzip"
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// DefaultUnitSize is the number of bytes served per "mb" in the request path.
const DefaultUnitSize = 1024 * 1024

var downloadPath = regexp.MustCompile(`/download/(\d+)mb$`)

// MockServer is a configurable HTTP test server that serves /download/{n}mb payloads.
type MockServer struct {
	Server *httptest.Server

	// Configuration
	UnitSize        int64             // Bytes served per requested megabyte
	Status          int               // Status code to reply with (0 = 200/206)
	SupportsRanges  bool              // Whether to answer Range requests with 206
	ContentType     string            // Content-Type header value
	Filename        string            // Filename in Content-Disposition header
	RandomData      bool              // If true, serve random data; otherwise a repeating pattern
	Gzip            bool              // Compress the body with gzip and drop Content-Length
	OmitLength      bool              // Stream the body without Content-Length
	ExtraHeaders    map[string]string // Written verbatim, e.g. Content-Encoding or X-File-Size
	Latency         time.Duration     // Artificial latency per request
	ChunkLatency    time.Duration     // Latency after each chunk written
	FailAfterBytes  int64             // Drop the connection after this many bytes (0 = no fail)
	ChunkSize       int64             // Write size (0 = 32KB)

	// Tracking
	RequestCount   atomic.Int64
	BytesServed    atomic.Int64
	ActiveRequests atomic.Int64
	RangeRequests  atomic.Int64
	FullRequests   atomic.Int64
	FailedRequests atomic.Int64
	lastRequest    atomic.Pointer[http.Request]

	// Internal
	mu            sync.Mutex
	payloads      map[int64][]byte
	CustomHandler http.HandlerFunc
}

// MockServerOption is a function that configures a MockServer.
type MockServerOption func(*MockServer)

// WithHandler sets a custom request handler.
func WithHandler(h http.HandlerFunc) MockServerOption {
	return func(m *MockServer) {
		m.CustomHandler = h
	}
}

// WithUnitSize sets how many bytes one requested megabyte maps to.
func WithUnitSize(size int64) MockServerOption {
	return func(m *MockServer) {
		m.UnitSize = size
	}
}

// WithStatus makes every request fail with the given status code.
func WithStatus(code int) MockServerOption {
	return func(m *MockServer) {
		m.Status = code
	}
}

// WithRangeSupport enables or disables Range request support.
func WithRangeSupport(enabled bool) MockServerOption {
	return func(m *MockServer) {
		m.SupportsRanges = enabled
	}
}

// WithContentType sets the Content-Type header.
func WithContentType(ct string) MockServerOption {
	return func(m *MockServer) {
		m.ContentType = ct
	}
}

// WithFilename sets the filename in Content-Disposition header.
func WithFilename(name string) MockServerOption {
	return func(m *MockServer) {
		m.Filename = name
	}
}

// WithRandomData enables serving random bytes instead of the pattern.
func WithRandomData(random bool) MockServerOption {
	return func(m *MockServer) {
		m.RandomData = random
	}
}

// WithGzip compresses the body. The client sees no Content-Length.
func WithGzip(enabled bool) MockServerOption {
	return func(m *MockServer) {
		m.Gzip = enabled
	}
}

// WithoutContentLength streams the body chunked.
func WithoutContentLength() MockServerOption {
	return func(m *MockServer) {
		m.OmitLength = true
	}
}

// WithHeader sets a response header. It overrides the generated value of the same name.
func WithHeader(key, value string) MockServerOption {
	return func(m *MockServer) {
		if m.ExtraHeaders == nil {
			m.ExtraHeaders = make(map[string]string)
		}
		m.ExtraHeaders[key] = value
	}
}

// WithLatency adds artificial latency per request.
func WithLatency(d time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.Latency = d
	}
}

// WithChunkLatency adds latency after every chunk written.
func WithChunkLatency(d time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.ChunkLatency = d
	}
}

// WithChunkSize sets how many bytes are written per chunk.
func WithChunkSize(n int64) MockServerOption {
	return func(m *MockServer) {
		m.ChunkSize = n
	}
}

// WithFailAfterBytes drops the connection after serving N bytes.
func WithFailAfterBytes(n int64) MockServerOption {
	return func(m *MockServer) {
		m.FailAfterBytes = n
	}
}

func newMockServer(opts []MockServerOption) *MockServer {
	m := &MockServer{
		UnitSize:       DefaultUnitSize,
		SupportsRanges: true,
		ContentType:    "application/octet-stream",
		payloads:       make(map[int64][]byte),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ChunkSize <= 0 {
		m.ChunkSize = 32 * 1024
	}
	return m
}

// listenLoopback binds 127.0.0.1. Sandboxed runners often have no IPv6 loopback.
func listenLoopback() (net.Listener, error) {
	return net.Listen("tcp4", "127.0.0.1:0")
}

func (m *MockServer) serve(ln net.Listener) {
	m.Server = &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: http.HandlerFunc(m.handleRequest)},
	}
	m.Server.Start()
}

// NewMockServer creates a new mock HTTP server with the given options.
// Without an IPv4 loopback it falls back to httptest's default listener.
func NewMockServer(opts ...MockServerOption) *MockServer {
	m := newMockServer(opts)
	ln, err := listenLoopback()
	if err != nil {
		m.Server = httptest.NewServer(http.HandlerFunc(m.handleRequest))
		return m
	}
	m.serve(ln)
	return m
}

// NewMockServerT creates a new mock HTTP server and skips the test if binding fails.
func NewMockServerT(t *testing.T, opts ...MockServerOption) *MockServer {
	t.Helper()
	ln, err := listenLoopback()
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
	}
	m := newMockServer(opts)
	m.serve(ln)
	t.Cleanup(m.Close)
	return m
}

// URL returns the server's base URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	if m.Server != nil {
		m.Server.Close()
	}
}

// LastRequest returns the most recent request received, or nil.
func (m *MockServer) LastRequest() *http.Request {
	return m.lastRequest.Load()
}

// Payload returns the exact bytes served for /download/{sizeMB}mb.
func (m *MockServer) Payload(sizeMB int) []byte {
	size := int64(sizeMB) * m.UnitSize

	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.payloads[size]; ok {
		return data
	}
	data := make([]byte, size)
	if m.RandomData {
		_, _ = rand.Read(data)
	} else {
		for i := range data {
			data[i] = byte(i % 251)
		}
	}
	m.payloads[size] = data
	return data
}

// Reset clears all tracking counters.
func (m *MockServer) Reset() {
	m.RequestCount.Store(0)
	m.BytesServed.Store(0)
	m.ActiveRequests.Store(0)
	m.RangeRequests.Store(0)
	m.FullRequests.Store(0)
	m.FailedRequests.Store(0)
}

// Stats returns a summary of server statistics.
func (m *MockServer) Stats() MockServerStats {
	return MockServerStats{
		TotalRequests:  m.RequestCount.Load(),
		BytesServed:    m.BytesServed.Load(),
		RangeRequests:  m.RangeRequests.Load(),
		FullRequests:   m.FullRequests.Load(),
		FailedRequests: m.FailedRequests.Load(),
	}
}

// MockServerStats contains server statistics.
type MockServerStats struct {
	TotalRequests  int64
	BytesServed    int64
	RangeRequests  int64
	FullRequests   int64
	FailedRequests int64
}

func (m *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	m.lastRequest.Store(r)
	if m.CustomHandler != nil {
		m.CustomHandler(w, r)
		return
	}

	m.RequestCount.Add(1)
	m.ActiveRequests.Add(1)
	defer m.ActiveRequests.Add(-1)

	if m.Latency > 0 {
		time.Sleep(m.Latency)
	}

	if m.Status != 0 && (m.Status < 200 || m.Status > 299) {
		m.FailedRequests.Add(1)
		http.Error(w, http.StatusText(m.Status), m.Status)
		return
	}

	match := downloadPath.FindStringSubmatch(r.URL.Path)
	if match == nil {
		m.FailedRequests.Add(1)
		http.NotFound(w, r)
		return
	}
	sizeMB, err := strconv.Atoi(match[1])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data := m.Payload(sizeMB)
	fileSize := int64(len(data))

	if m.Gzip {
		m.FullRequests.Add(1)
		m.serveGzip(w, data)
		return
	}

	start, end := int64(0), fileSize-1
	status := http.StatusOK

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" && m.SupportsRanges && fileSize > 0 {
		m.RangeRequests.Add(1)
		start, end, err = parseRange(rangeHeader, fileSize)
		if err != nil {
			http.Error(w, "Invalid range", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
		status = http.StatusPartialContent
	} else {
		m.FullRequests.Add(1)
		if m.SupportsRanges {
			w.Header().Set("Accept-Ranges", "bytes")
		}
	}

	m.setCommonHeaders(w, end-start+1)
	if m.Status != 0 {
		status = m.Status
	}
	w.WriteHeader(status)
	if m.OmitLength {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	m.writeChunks(w, data[start:end+1])
}

func (m *MockServer) serveGzip(w http.ResponseWriter, data []byte) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()

	m.setCommonHeaders(w, -1)
	w.Header().Set("Content-Encoding", "gzip")
	for k, v := range m.ExtraHeaders {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	m.writeChunks(w, buf.Bytes())
}

// writeChunks writes body in chunks to support chunk latency and fail-after-bytes.
func (m *MockServer) writeChunks(w http.ResponseWriter, body []byte) {
	var written int64
	length := int64(len(body))
	for written < length {
		if m.FailAfterBytes > 0 && written >= m.FailAfterBytes {
			m.FailedRequests.Add(1)
			// Hijack so the client sees the connection drop instead of a clean end
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
				}
			}
			return
		}

		chunk := m.ChunkSize
		if m.FailAfterBytes > 0 && m.FailAfterBytes-written < chunk {
			chunk = m.FailAfterBytes - written
		}
		if remaining := length - written; remaining < chunk {
			chunk = remaining
		}

		n, err := w.Write(body[written : written+chunk])
		if err != nil {
			return // Client disconnected
		}
		written += int64(n)
		m.BytesServed.Add(int64(n))

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		if m.ChunkLatency > 0 {
			time.Sleep(m.ChunkLatency)
		}
	}
}

// setCommonHeaders writes Content-Type, Content-Disposition and, when length >= 0, Content-Length.
func (m *MockServer) setCommonHeaders(w http.ResponseWriter, length int64) {
	w.Header().Set("Content-Type", m.ContentType)
	if length >= 0 && !m.OmitLength {
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	}
	if m.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, m.Filename))
	}
	for k, v := range m.ExtraHeaders {
		w.Header().Set(k, v)
	}
}

// parseRange parses an HTTP Range header and returns start, end positions.
// Handles formats like "bytes=0-499" or "bytes=500-"
func parseRange(rangeHeader string, fileSize int64) (int64, int64, error) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return 0, 0, fmt.Errorf("invalid range prefix")
	}

	rangeSpec := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(rangeSpec, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range format")
	}

	var start, end int64
	var err error

	if parts[0] == "" {
		// Suffix range: -500 means last 500 bytes
		end = fileSize - 1
		start, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		start = fileSize - start
	} else {
		start, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, 0, err
		}

		if parts[1] == "" {
			// Open-ended range: 500-
			end = fileSize - 1
		} else {
			end, err = strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, 0, err
			}
		}
	}

	if start < 0 || end >= fileSize || start > end {
		return 0, 0, fmt.Errorf("range out of bounds")
	}

	return start, end, nil
}
