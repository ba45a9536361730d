package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"go-photoid/internal/config"
)

var showConfigFormatFlag string

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugShowConfigCmd)
	debugCmd.AddCommand(debugPrintRequestCmd)

	debugShowConfigCmd.Flags().StringVar(&showConfigFormatFlag, "format", "json", "Output format (json, toml)")

	// Same flags as convert so the printed request matches what convert would send.
	addConvertFlags(debugPrintRequestCmd)
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging utilities (not for general use)",
	Long:  `Contains helper commands for debugging application behavior, like inspecting configuration or the preview request.`,
}

var debugShowConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Print the fully loaded configuration",
	Long: `Loads configuration via defaults, config file, environment and flags
(respecting precedence) and prints the result. The API key is masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig
		if cfg.APIKey != "" {
			cfg.APIKey = "********"
		}

		out := cmd.OutOrStdout()
		switch strings.ToLower(showConfigFormatFlag) {
		case "toml":
			if err := toml.NewEncoder(out).Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config as TOML: %w", err)
			}
		case "json":
			jsonBytes, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config to JSON: %w", err)
			}
			fmt.Fprintln(out, string(jsonBytes))
		default:
			return fmt.Errorf("unknown format %q (want json or toml)", showConfigFormatFlag)
		}
		return nil
	},
}

var debugPrintRequestCmd = &cobra.Command{
	Use:   "print-request",
	Short: "Print the preview request line convert would send",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := config.ConvertInput(globalConfig).Build()
		if err := spec.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "POST %s\n", newAPIClient().PreviewURL(spec))
		return nil
	},
}
