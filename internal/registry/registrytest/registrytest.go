// Package registrytest is a conformance suite every registry backend must pass.
package registrytest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobprobe/blobprobe/internal/registry"
)

// RegistryFunc returns an empty registry and a function that releases it.
type RegistryFunc func(t testing.TB) (registry.Registry, func())

// RunTests runs the conformance suite against fnc.
func RunTests(t *testing.T, fnc RegistryFunc) {
	t.Run("round trip", func(t *testing.T) { testRoundTrip(t, fnc) })
	t.Run("missing", func(t *testing.T) { testMissing(t, fnc) })
	t.Run("replace", func(t *testing.T) { testReplace(t, fnc) })
	t.Run("delete", func(t *testing.T) { testDelete(t, fnc) })
	t.Run("keys", func(t *testing.T) { testKeys(t, fnc) })
	t.Run("list", func(t *testing.T) { testList(t, fnc) })
	t.Run("empty blob", func(t *testing.T) { testEmptyBlob(t, fnc) })
	t.Run("concurrent", func(t *testing.T) { testConcurrent(t, fnc) })
}

func payload(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i) ^ seed
	}
	return data
}

func testRoundTrip(t *testing.T, fnc RegistryFunc) {
	reg, closer := fnc(t)
	defer closer()
	ctx := context.Background()

	data := payload(100*1024, 7)
	require.NoError(t, reg.Set(ctx, 0, data))

	got, err := reg.Get(ctx, 0)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got), "stored blob differs from input")

	// Mutating the input after Set must not change what is stored
	data[0] ^= 0xff
	got, err = reg.Get(ctx, 0)
	require.NoError(t, err)
	require.NotEqual(t, data[0], got[0])
}

func testMissing(t *testing.T, fnc RegistryFunc) {
	reg, closer := fnc(t)
	defer closer()
	ctx := context.Background()

	_, err := reg.Get(ctx, 42)
	require.ErrorIs(t, err, registry.ErrNotFound)

	_, err = reg.Stat(ctx, 42)
	require.ErrorIs(t, err, registry.ErrNotFound)

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func testReplace(t *testing.T, fnc RegistryFunc) {
	reg, closer := fnc(t)
	defer closer()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 3, payload(4096, 1)))
	replacement := []byte("short")
	require.NoError(t, reg.Set(ctx, 3, replacement))

	got, err := reg.Get(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, replacement, got)

	info, err := reg.Stat(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(len(replacement)), info.Size)

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{3}, keys)
}

func testDelete(t *testing.T, fnc RegistryFunc) {
	reg, closer := fnc(t)
	defer closer()
	ctx := context.Background()

	// Absent key
	require.NoError(t, reg.Delete(ctx, 9))

	require.NoError(t, reg.Set(ctx, 9, []byte("nine")))
	require.NoError(t, reg.Delete(ctx, 9))
	require.NoError(t, reg.Delete(ctx, 9))

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	require.NotContains(t, keys, 9)

	_, err = reg.Get(ctx, 9)
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func testKeys(t *testing.T, fnc RegistryFunc) {
	reg, closer := fnc(t)
	defer closer()
	ctx := context.Background()

	for _, id := range []int{5, 0, 3} {
		require.NoError(t, reg.Set(ctx, id, []byte(fmt.Sprintf("blob-%d", id))))
	}

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	sort.Ints(keys)
	require.Equal(t, []int{0, 3, 5}, keys)
}

func testList(t *testing.T, fnc RegistryFunc) {
	reg, closer := fnc(t)
	defer closer()
	ctx := context.Background()

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, payload(64, 3)...)
	plain := payload(300, 9)

	require.NoError(t, reg.Set(ctx, 7, plain))
	require.NoError(t, reg.Set(ctx, 2, png))

	infos, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, 2, infos[0].ID)
	assert.Equal(t, 7, infos[1].ID)

	sum := sha256.Sum256(plain)
	assert.Equal(t, int64(len(plain)), infos[1].Size)
	assert.Equal(t, hex.EncodeToString(sum[:]), infos[1].SHA256)
	assert.Equal(t, registry.DefaultContentType, infos[1].ContentType)
	assert.Equal(t, "image/png", infos[0].ContentType)
	assert.False(t, infos[0].StoredAt.IsZero())

	info, err := reg.Stat(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, infos[1].SHA256, info.SHA256)
	assert.Equal(t, infos[1].Size, info.Size)
}

func testEmptyBlob(t *testing.T, fnc RegistryFunc) {
	reg, closer := fnc(t)
	defer closer()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 1, []byte{}))
	got, err := reg.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 0)

	info, err := reg.Stat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size)
}

func testConcurrent(t *testing.T, fnc RegistryFunc) {
	reg, closer := fnc(t)
	defer closer()
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs <- reg.Set(ctx, id, payload(1024, byte(id)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, n)

	for i := 0; i < n; i++ {
		got, err := reg.Get(ctx, i)
		require.NoError(t, err)
		require.Equal(t, payload(1024, byte(i)), got)
	}
}
