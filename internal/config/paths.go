package config

import (
	"os"
	"path/filepath"
)

// GetAppDir returns the application directory holding settings, state and logs.
// XDG_CONFIG_HOME takes precedence on every platform so tests can redirect it.
func GetAppDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "blobprobe")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "blobprobe")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".blobprobe")
}

// GetStateDir returns the directory for registry data and the instance lock.
func GetStateDir() string {
	return filepath.Join(GetAppDir(), "state")
}

// GetLogsDir returns the directory for debug logs.
func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// EnsureDirs creates the state and logs directories.
func EnsureDirs() error {
	for _, dir := range []string{GetStateDir(), GetLogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
