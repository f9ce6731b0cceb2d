package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// DownloadURL builds the payload URL for sizeMB on the given host.
// Example: https://example.com + 500 -> https://example.com/download/500mb
func DownloadURL(baseURL string, sizeMB int) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %s", parsed.Scheme, baseURL)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host in %s", baseURL)
	}

	// Keep any path prefix the host is mounted under
	prefix := strings.TrimSuffix(parsed.Path, "/")
	parsed.Path = fmt.Sprintf("%s/download/%dmb", prefix, sizeMB)
	parsed.RawPath = ""

	return parsed.String(), nil
}
