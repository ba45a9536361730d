package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the processing service is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient()
		status, err := client.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("health check against %s failed: %w", client.BaseURL, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", client.BaseURL, status.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
