package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/blobprobe/blobprobe/internal/config"
	"github.com/blobprobe/blobprobe/internal/core"
	"github.com/blobprobe/blobprobe/internal/engine/fetch"
	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/registry/backend"
	"github.com/blobprobe/blobprobe/internal/tui"
	"github.com/blobprobe/blobprobe/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// settings is loaded once per invocation by PersistentPreRunE
var settings *config.Settings

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blobprobe",
	Short: "Download speed-test payloads into a local blob registry",
	Long: `blobprobe fetches /download/{n}mb payloads with live byte progress and keeps
each one in a blob registry under an integer identifier.

Run without a subcommand to open the dashboard.`,
	Version:      Version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeGlobalState()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := acquireWriterLock(); err != nil {
			return err
		}
		defer func() {
			if err := ReleaseLock(); err != nil {
				utils.Debug("Error releasing lock: %v", err)
			}
		}()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := svc.Shutdown(); err != nil {
				utils.Debug("Error shutting down service: %v", err)
			}
		}()

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			startMetricsServer(ctx, addr, svc)
		}

		return startTUI(ctx, svc)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("blobprobe {{.Version}} (built %s)\n", BuildTime))
	rootCmd.Flags().String("metrics-addr", "", "serve /metrics and /health on this address while the dashboard runs")
}

// initializeGlobalState loads settings and points the debug log at the logs directory.
func initializeGlobalState() error {
	s, err := config.LoadSettings()
	if err != nil {
		return err
	}
	settings = s

	if err := config.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create state directories: %w", err)
	}
	utils.ConfigureDebug(config.GetLogsDir())
	utils.CleanupLogs(settings.General.LogRetentionCount)
	utils.Debug("blobprobe %s starting: backend=%s base_url=%s",
		Version, settings.Registry.Backend, settings.Network.BaseURL)
	return nil
}

func newFetcher() *fetch.Fetcher {
	return fetch.NewFetcher(types.ConvertRuntimeConfig(settings.ToRuntimeConfig()))
}

// openService opens the configured registry. The returned service owns it.
func openService(ctx context.Context) (*core.LocalBlobService, error) {
	reg, err := backend.Open(ctx, settings)
	if err != nil {
		return nil, err
	}
	return core.NewLocalBlobService(reg, newFetcher()), nil
}

// startTUI initializes and runs the TUI program
func startTUI(ctx context.Context, svc core.BlobService) error {
	tui.ApplyTheme(settings.General.Theme)

	m, err := tui.InitialRootModel(ctx, svc, settings)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
