package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <id>",
	Short: "Write a stored blob to stdout or a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")

		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		data, err := svc.Get(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("blob %d: %w", id, err)
		}

		if output != "" {
			return os.WriteFile(output, data, 0644)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	catCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(catCmd)
}
