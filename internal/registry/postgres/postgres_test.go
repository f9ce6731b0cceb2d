package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blobprobe/blobprobe/internal/registry"
	"github.com/blobprobe/blobprobe/internal/registry/registrytest"
)

// Set BLOBPROBE_TEST_POSTGRES_DSN to a disposable database to run these tests.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("BLOBPROBE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BLOBPROBE_TEST_POSTGRES_DSN not set")
	}

	registrytest.RunTests(t, func(t testing.TB) (registry.Registry, func()) {
		ctx := context.Background()
		reg, err := Open(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, reg.Truncate(ctx))
		return reg, func() {
			_ = reg.Truncate(ctx)
			_ = reg.Close()
		}
	})
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://nobody@127.0.0.1:1/none?connect_timeout=1")
	require.Error(t, err)
}
