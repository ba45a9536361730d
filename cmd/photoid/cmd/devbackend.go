package cmd

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-photoid/internal/config"
	"go-photoid/internal/devbackend"
)

var (
	devAddrFlag        string
	devMaxUploadFlag   int
	devHourlyLimitFlag int
	devDailyLimitFlag  int
)

var devBackendCmd = &cobra.Command{
	Use:   "dev-backend",
	Short: "Run a local stand-in for the processing service",
	Long: `Serves the processing service's HTTP contract on a local address so the
client can be exercised without the real service. Images are only cropped
and resized; there is no face detection or background removal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !log.IsLevelEnabled(log.DebugLevel) {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := devbackend.New(globalConfig.DevBackend)
		return srv.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(devBackendCmd)
	devBackendCmd.Flags().StringVar(&devAddrFlag, "addr", "", "Listen address (overrides config)")
	devBackendCmd.Flags().IntVar(&devMaxUploadFlag, "max-upload-mb", 0, "Largest accepted upload in MB (overrides config)")
	devBackendCmd.Flags().IntVar(&devHourlyLimitFlag, "hourly-limit", 0, "Requests per client per hour, negative disables (overrides config)")
	devBackendCmd.Flags().IntVar(&devDailyLimitFlag, "daily-limit", 0, "Requests per client per day, negative disables (overrides config)")
}

func devBackendFlagOverrides(cmd *cobra.Command) *config.CliDevBackendFlags {
	changed := cmd.Flags().Changed
	flags := &config.CliDevBackendFlags{}
	if changed("addr") {
		flags.Addr = &devAddrFlag
	}
	if changed("max-upload-mb") {
		flags.MaxUploadMB = &devMaxUploadFlag
	}
	if changed("hourly-limit") {
		flags.HourlyLimit = &devHourlyLimitFlag
	}
	if changed("daily-limit") {
		flags.DailyLimit = &devDailyLimitFlag
	}
	return flags
}
