package cmd

import (
	"bytes"
	"net"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blobprobe/blobprobe/internal/testutil"
)

func requireTCPListener(t *testing.T) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp listener unavailable: %v", err)
		return
	}
	_ = ln.Close()
}

// setupEnv points settings at a fresh state directory, the file backend and server.
func setupEnv(t *testing.T, server *testutil.MockServer) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("BLOBPROBE_REGISTRY_BACKEND", "file")
	if server != nil {
		t.Setenv("BLOBPROBE_NETWORK_BASE_URL", server.URL())
	}
}

// runCmd executes the root command with args and returns what it wrote.
func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer resetFlags(rootCmd)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores flag defaults, which cobra keeps between Execute calls.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
