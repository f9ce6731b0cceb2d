package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blobprobe/blobprobe/internal/registry"
)

var getCmd = &cobra.Command{
	Use:   "get [size-mb]",
	Short: "Download a payload and store it in the registry",
	Long: `get fetches <base-url>/download/{size}mb, printing byte progress to stderr, and
stores the body under --id or, without --id, under the next free identifier.
The size defaults to general.default_size_mb.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sizeMB, err := sizeFromArgs(args)
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		if err := acquireWriterLock(); err != nil {
			return err
		}
		defer func() { _ = ReleaseLock() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		sub, unsubscribe, err := svc.StreamEvents(ctx)
		if err != nil {
			return err
		}
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			printEvents(cmd.ErrOrStderr(), sub, quiet)
		}()

		var id int
		if cmd.Flags().Changed("id") {
			id, _ = cmd.Flags().GetInt("id")
			err = svc.DownloadAndStore(ctx, id, sizeMB)
		} else {
			id, err = svc.Download(ctx, sizeMB)
		}

		unsubscribe()
		<-printed
		if err != nil {
			return err
		}

		info, err := svc.Registry().Stat(ctx, id)
		if err != nil {
			return fmt.Errorf("blob %d stored but unreadable: %w", id, err)
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), info)
		}
		printStored(cmd, info)
		return nil
	},
}

func printStored(cmd *cobra.Command, info registry.BlobInfo) {
	fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", info.ID, humanize.IBytes(uint64(info.Size)), info.SHA256)
}

func init() {
	getCmd.Flags().Int("id", 0, "store under this identifier, replacing any blob already there")
	getCmd.Flags().Bool("json", false, "print the stored blob's metadata as JSON")
	getCmd.Flags().BoolP("quiet", "q", false, "only report errors on stderr")
	rootCmd.AddCommand(getCmd)
}
