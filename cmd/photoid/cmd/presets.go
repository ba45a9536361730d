package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-photoid/internal/outputspec"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the recognized output presets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printPresets(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

func printPresets(out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL")
	for _, p := range outputspec.Presets() {
		fmt.Fprintf(tw, "%s\t%s\n", p.ID, p.Label)
	}
	tw.Flush()
}
