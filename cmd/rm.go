package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"delete"},
	Short:   "Delete blobs from the registry",
	Long:    `rm deletes each identifier. Deleting an identifier that holds nothing succeeds.`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int, 0, len(args))
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		if err := acquireWriterLock(); err != nil {
			return err
		}
		defer func() { _ = ReleaseLock() }()

		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		for _, id := range ids {
			if err := svc.Remove(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete blob %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
