package types

import (
	"testing"
	"time"

	"github.com/blobprobe/blobprobe/internal/config"
)

// TestConvertRuntimeConfig_AllFieldsCopied verifies that every field in
// config.RuntimeConfig is correctly mapped to types.RuntimeConfig.
func TestConvertRuntimeConfig_AllFieldsCopied(t *testing.T) {
	input := &config.RuntimeConfig{
		BaseURL:               "http://127.0.0.1:9000",
		UserAgent:             "TestAgent/1.0",
		ProxyURL:              "http://127.0.0.1:8080",
		SkipTLSVerification:   true,
		ReadBufferSize:        128 * 1024,
		ResponseHeaderTimeout: 7 * time.Second,
	}

	result := ConvertRuntimeConfig(input)

	if result == nil {
		t.Fatal("ConvertRuntimeConfig returned nil")
	}
	if result.BaseURL != input.BaseURL {
		t.Errorf("BaseURL: got %q, want %q", result.BaseURL, input.BaseURL)
	}
	if result.UserAgent != input.UserAgent {
		t.Errorf("UserAgent: got %q, want %q", result.UserAgent, input.UserAgent)
	}
	if result.ProxyURL != input.ProxyURL {
		t.Errorf("ProxyURL: got %q, want %q", result.ProxyURL, input.ProxyURL)
	}
	if result.SkipTLSVerification != input.SkipTLSVerification {
		t.Errorf("SkipTLSVerification: got %v, want %v", result.SkipTLSVerification, input.SkipTLSVerification)
	}
	if result.ReadBufferSize != input.ReadBufferSize {
		t.Errorf("ReadBufferSize: got %d, want %d", result.ReadBufferSize, input.ReadBufferSize)
	}
	if result.ResponseHeaderTimeout != input.ResponseHeaderTimeout {
		t.Errorf("ResponseHeaderTimeout: got %v, want %v", result.ResponseHeaderTimeout, input.ResponseHeaderTimeout)
	}
}

func TestConvertRuntimeConfig_Nil(t *testing.T) {
	if got := ConvertRuntimeConfig(nil); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestRuntimeConfig_Defaults(t *testing.T) {
	var rc *RuntimeConfig

	if rc.GetBaseURL() != DefaultBaseURL {
		t.Errorf("GetBaseURL on nil = %q", rc.GetBaseURL())
	}
	if rc.GetReadBufferSize() != ReadBuffer {
		t.Errorf("GetReadBufferSize on nil = %d", rc.GetReadBufferSize())
	}
	if rc.GetResponseHeaderTimeout() != DefaultResponseHeaderTimeout {
		t.Errorf("GetResponseHeaderTimeout on nil = %v", rc.GetResponseHeaderTimeout())
	}
	if rc.GetUserAgent() == "" {
		t.Error("GetUserAgent on nil should return the default agent")
	}

	rc = &RuntimeConfig{ReadBufferSize: -1, UserAgent: "x/1"}
	if rc.GetReadBufferSize() != ReadBuffer {
		t.Errorf("negative buffer should fall back, got %d", rc.GetReadBufferSize())
	}
	if rc.GetUserAgent() != "x/1" {
		t.Errorf("GetUserAgent = %q, want x/1", rc.GetUserAgent())
	}
}
