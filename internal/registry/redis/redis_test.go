package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobprobe/blobprobe/internal/registry"
	"github.com/blobprobe/blobprobe/internal/registry/registrytest"
)

func newTestRegistry(t testing.TB) (*Registry, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, "test"), mr
}

func TestRedis(t *testing.T) {
	registrytest.RunTests(t, func(t testing.TB) (registry.Registry, func()) {
		reg, _ := newTestRegistry(t)
		return reg, func() { _ = reg.Close() }
	})
}

func TestRedis_Layout(t *testing.T) {
	reg, mr := newTestRegistry(t)
	defer reg.Close()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 6, []byte("six")))

	assert.True(t, mr.Exists("test:blob:6"))
	members, err := mr.Members("test:blobs")
	require.NoError(t, err)
	assert.Equal(t, []string{"6"}, members)
	assert.Equal(t, "six", mr.HGet("test:blob:6", "data"))
	assert.Equal(t, "3", mr.HGet("test:blob:6", "size"))

	require.NoError(t, reg.Delete(ctx, 6))
	assert.False(t, mr.Exists("test:blob:6"))
}

func TestRedis_SkipsNonNumericMembers(t *testing.T) {
	reg, mr := newTestRegistry(t)
	defer reg.Close()
	ctx := context.Background()

	require.NoError(t, reg.Set(ctx, 2, []byte("two")))
	_, err := mr.SAdd("test:blobs", "garbage", "-4", "02")
	require.NoError(t, err)

	keys, err := reg.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, keys)

	infos, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].ID)
}

func TestRedis_IndexedButMissingHash(t *testing.T) {
	reg, mr := newTestRegistry(t)
	defer reg.Close()
	ctx := context.Background()

	_, err := mr.SAdd("test:blobs", "8")
	require.NoError(t, err)

	infos, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, err = reg.Stat(ctx, 8)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), addr, 0, "x")
	assert.Error(t, err)
}

func TestIsOOM(t *testing.T) {
	assert.True(t, isOOM(errors.New("OOM command not allowed when used memory > 'maxmemory'.")))
	assert.False(t, isOOM(errors.New("ERR wrong number of arguments")))
}

// startMaxmemoryServer answers like a redis at maxmemory: queued write
// commands are rejected with OOM and EXEC aborts the transaction.
func startMaxmemoryServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveMaxmemory(conn)
		}
	}()
	return ln.Addr().String()
}

func serveMaxmemory(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	inMulti := false
	for {
		args, err := readCommand(rd)
		if err != nil {
			return
		}
		var reply string
		switch name := strings.ToUpper(args[0]); {
		case name == "PING":
			reply = "+PONG\r\n"
		case name == "MULTI":
			inMulti = true
			reply = "+OK\r\n"
		case name == "EXEC":
			inMulti = false
			reply = "-EXECABORT Transaction discarded because of previous errors.\r\n"
		case inMulti && name == "DEL":
			reply = "+QUEUED\r\n"
		case inMulti:
			reply = "-OOM command not allowed when used memory > 'maxmemory'.\r\n"
		default:
			reply = fmt.Sprintf("-ERR unknown command '%s'\r\n", args[0])
		}
		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

func readCommand(rd *bufio.Reader) ([]string, error) {
	line, err := rd.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "*")))
	if err != nil || n < 1 {
		return nil, fmt.Errorf("bad command header %q", line)
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "$")))
		if err != nil {
			return nil, fmt.Errorf("bad bulk header %q", line)
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func TestSet_MaxmemoryInsideTransaction(t *testing.T) {
	addr := startMaxmemoryServer(t)
	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Protocol:        2,
		DisableIdentity: true,
		MaxRetries:      -1,
	})
	reg := New(client, "test")
	defer reg.Close()

	err := reg.Set(context.Background(), 1, []byte("hello"))
	require.Error(t, err)

	var quotaErr *registry.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 1, quotaErr.ID)
	assert.Equal(t, int64(5), quotaErr.Size)
	assert.True(t, isOOM(quotaErr.Err), "cause should be the OOM reply, got %v", quotaErr.Err)
}

func TestFindOOM(t *testing.T) {
	oom := errors.New("OOM command not allowed when used memory > 'maxmemory'.")
	abort := errors.New("EXECABORT Transaction discarded because of previous errors.")

	queued := redis.NewStatusCmd(context.Background(), "hset")
	queued.SetErr(oom)
	ok := redis.NewIntCmd(context.Background(), "del")

	assert.Equal(t, oom, findOOM(abort, []redis.Cmder{ok, queued}))
	assert.Equal(t, oom, findOOM(oom, nil))
	assert.Nil(t, findOOM(abort, []redis.Cmder{ok}))
	assert.Nil(t, findOOM(errors.New("ERR wrong number of arguments"), nil))
}
