package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blobprobe/blobprobe/internal/engine/fetch"
)

var probeCmd = &cobra.Command{
	Use:   "probe [size-mb]",
	Short: "Show what the server declares about a payload without downloading it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sizeMB, err := sizeFromArgs(args)
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")

		res, err := newFetcher().Probe(cmd.Context(), sizeMB)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printProbe(cmd, res)
		return nil
	},
}

func printProbe(cmd *cobra.Command, res *fetch.ProbeResult) {
	size := func(n int64) string {
		if n < 0 {
			return "-"
		}
		return fmt.Sprintf("%d (%s)", n, humanize.IBytes(uint64(n)))
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "URL:\t%s\n", res.URL)
	fmt.Fprintf(w, "Status:\t%d\n", res.Status)
	fmt.Fprintf(w, "Range requests:\t%t\n", res.SupportsRange)
	fmt.Fprintf(w, "Encoding:\t%s\n", res.Declared.Encoding)
	fmt.Fprintf(w, "Content-Length:\t%s\n", size(res.Declared.ContentLength))
	fmt.Fprintf(w, "%s:\t%s\n", fetch.HeaderFileSize, size(res.Declared.FileSize))
	fmt.Fprintf(w, "Progress total:\t%s\n", size(res.Total))
	if res.ContentType != "" {
		fmt.Fprintf(w, "Content-Type:\t%s\n", res.ContentType)
	}
	if res.Filename != "" {
		fmt.Fprintf(w, "Filename:\t%s\n", res.Filename)
	}
	_ = w.Flush()
}

func init() {
	probeCmd.Flags().Bool("json", false, "print the probe result as JSON")
	rootCmd.AddCommand(probeCmd)
}
