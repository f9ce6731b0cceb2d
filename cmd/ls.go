package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blobprobe/blobprobe/internal/registry"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List stored blobs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		infos, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOut {
			if infos == nil {
				infos = []registry.BlobInfo{}
			}
			return printJSON(cmd.OutOrStdout(), infos)
		}

		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No blobs stored")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderBlobTable(infos))
		fmt.Fprintf(cmd.OutOrStdout(), "%d blobs, %s\n", len(infos), humanize.IBytes(uint64(registry.TotalSize(infos))))
		return nil
	},
}

func renderBlobTable(infos []registry.BlobInfo) string {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			strconv.Itoa(info.ID),
			humanize.IBytes(uint64(info.Size)),
			info.ContentType,
			shortDigest(info.SHA256),
			humanize.Time(info.StoredAt),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "SIZE", "TYPE", "SHA256", "STORED").
		Rows(rows...).
		String()
}

func init() {
	lsCmd.Flags().Bool("json", false, "print metadata as JSON")
	rootCmd.AddCommand(lsCmd)
}
