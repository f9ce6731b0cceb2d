package types

import "github.com/blobprobe/blobprobe/internal/config"

// ConvertRuntimeConfig converts the app-level RuntimeConfig to the engine-level RuntimeConfig.
func ConvertRuntimeConfig(rc *config.RuntimeConfig) *RuntimeConfig {
	if rc == nil {
		return nil
	}
	return &RuntimeConfig{
		BaseURL:               rc.BaseURL,
		UserAgent:             rc.UserAgent,
		ProxyURL:              rc.ProxyURL,
		SkipTLSVerification:   rc.SkipTLSVerification,
		ReadBufferSize:        rc.ReadBufferSize,
		ResponseHeaderTimeout: rc.ResponseHeaderTimeout,
	}
}
