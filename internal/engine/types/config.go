package types

import (
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB

	// Megabyte as float for display calculations
	Megabyte = 1024.0 * 1024.0
)

// Fetch tuning
const (
	ReadBuffer = 64 * KB // Size of each pull from the response body

	// Preallocation is skipped above this size; the buffer grows as chunks arrive
	MaxPrealloc = 1 * GB

	// Progress events on the event channel are throttled; the callback is not
	ProgressEventInterval = 200 * time.Millisecond
)

// HTTP Client Tuning
const (
	DefaultMaxIdleConns          = 100
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 15 * time.Second
	DefaultExpectContinueTimeout = 1 * time.Second
	DialTimeout                  = 10 * time.Second
	KeepAliveDuration            = 30 * time.Second
	ProbeTimeout                 = 30 * time.Second
)

// Download defaults
const (
	DefaultBaseURL = "https://cellular-speedtest.s3.eu-central-1.amazonaws.com"
	DefaultSizeMB  = 500
)

// Channel buffer sizes
const (
	ProgressChannelBuffer = 100
)

// RuntimeConfig holds dynamic settings that can override defaults
type RuntimeConfig struct {
	BaseURL               string
	UserAgent             string
	ProxyURL              string
	SkipTLSVerification   bool
	ReadBufferSize        int
	ResponseHeaderTimeout time.Duration
}

// GetUserAgent returns the configured user agent or the default
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return r.UserAgent
}

// GetBaseURL returns the configured download host or the default bucket
func (r *RuntimeConfig) GetBaseURL() string {
	if r == nil || r.BaseURL == "" {
		return DefaultBaseURL
	}
	return r.BaseURL
}

// GetReadBufferSize returns configured value or default
func (r *RuntimeConfig) GetReadBufferSize() int {
	if r == nil || r.ReadBufferSize <= 0 {
		return ReadBuffer
	}
	return r.ReadBufferSize
}

// GetResponseHeaderTimeout returns configured value or default
func (r *RuntimeConfig) GetResponseHeaderTimeout() time.Duration {
	if r == nil || r.ResponseHeaderTimeout <= 0 {
		return DefaultResponseHeaderTimeout
	}
	return r.ResponseHeaderTimeout
}
