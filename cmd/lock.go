package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/blobprobe/blobprobe/internal/config"
)

// ErrLocked is returned when another process holds the writer lock.
var ErrLocked = errors.New("another blobprobe process is writing to the registry")

var instanceLock *flock.Flock

func lockPath() string {
	return filepath.Join(config.GetStateDir(), "blobprobe.lock")
}

// AcquireLock takes the writer lock without waiting. It reports false when another process holds it.
func AcquireLock() (bool, error) {
	if instanceLock != nil {
		return true, nil
	}
	if err := config.EnsureDirs(); err != nil {
		return false, err
	}

	fl := flock.New(lockPath())
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return false, nil
	}
	instanceLock = fl
	return true, nil
}

// ReleaseLock releases the writer lock if this process holds it.
func ReleaseLock() error {
	if instanceLock == nil {
		return nil
	}
	err := instanceLock.Unlock()
	instanceLock = nil
	return err
}

func acquireWriterLock() error {
	ok, err := AcquireLock()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	return nil
}
