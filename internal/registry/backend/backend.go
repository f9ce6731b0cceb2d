// Package backend opens the registry selected in settings.
package backend

import (
	"context"
	"fmt"

	"github.com/blobprobe/blobprobe/internal/config"
	"github.com/blobprobe/blobprobe/internal/registry"
	"github.com/blobprobe/blobprobe/internal/registry/postgres"
	"github.com/blobprobe/blobprobe/internal/registry/redis"
	"github.com/blobprobe/blobprobe/internal/registry/sqlite"
	"github.com/blobprobe/blobprobe/internal/utils"
)

// Open builds the configured backend, applies the quota if one is set, and instruments it.
func Open(ctx context.Context, s *config.Settings) (registry.Registry, error) {
	if s == nil {
		s = config.DefaultSettings()
	}

	var (
		reg registry.Registry
		err error
	)
	name := s.Registry.Backend
	switch name {
	case config.BackendMemory:
		reg = registry.NewMemory()
	case config.BackendFile:
		reg, err = registry.NewFileRegistry(s.BlobDir())
	case config.BackendSQLite, "":
		name = config.BackendSQLite
		reg, err = sqlite.Open(s.SQLitePath())
	case config.BackendRedis:
		reg, err = redis.Open(ctx, s.Registry.RedisAddr, s.Registry.RedisDB, s.Registry.RedisPrefix)
	case config.BackendPostgres:
		reg, err = postgres.Open(ctx, s.Registry.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s registry: %w", name, err)
	}
	utils.Debug("Registry: opened %s backend", name)

	if s.Registry.QuotaBytes > 0 {
		reg = registry.WithQuota(reg, s.Registry.QuotaBytes)
	}
	return registry.Instrument(reg, name), nil
}
