package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-photoid/internal/api"
	"go-photoid/internal/artifact"
	"go-photoid/internal/config"
	"go-photoid/internal/models"
	"go-photoid/internal/session"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

var (
	logLevel       string
	logFormat      string
	logApiFlag     bool
	baseURLFlag    string
	apiKeyFlag     string
	apiTimeoutFlag int
	maxFileMBFlag  int
)

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the configured HTTP transport (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "photoid",
	Short: "Convert portraits into passport, visa and ID card photos",
	Long: `photoid sends a portrait to the PhotoID processing service and saves
the converted image in a standard document size (passport, visa, ID card)
or in custom pixel dimensions.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadGlobalConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeTransport()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Logging level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Processing service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "API key sent as a bearer token (overrides config)")
	rootCmd.PersistentFlags().IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for API HTTP client in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&maxFileMBFlag, "max-file-size-mb", -1, "Largest accepted source image in MB (overrides config)")
}

// loadGlobalConfig builds CliFlags from the flags the user actually set and
// loads the merged configuration.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	initLogging(logLevel, logFormat)

	flags := config.CliFlags{}
	changed := cmd.Flags().Changed
	if changed("config") {
		flags.ConfigFilePath = &cfgFile
	}
	if changed("log-level") {
		flags.LogLevel = &logLevel
	}
	if changed("log-format") {
		flags.LogFormat = &logFormat
	}
	if changed("log-api") {
		flags.LogApiRequests = &logApiFlag
	}
	if changed("base-url") {
		flags.BaseURL = &baseURLFlag
	}
	if changed("api-key") {
		flags.APIKey = &apiKeyFlag
	}
	if changed("api-timeout") {
		flags.APIClientTimeoutSec = &apiTimeoutFlag
	}
	if changed("max-file-size-mb") {
		flags.MaxFileSizeMB = &maxFileMBFlag
	}
	if changed("output-dir") {
		flags.OutputDir = &outputDirFlag
	}
	flags.Convert = convertFlagOverrides(cmd)
	flags.DevBackend = devBackendFlagOverrides(cmd)

	cfg, transport, err := config.Initialize(flags)
	if err != nil {
		return err
	}
	globalConfig = cfg
	globalHttpTransport = transport

	initLogging(globalConfig.LogLevel, globalConfig.LogFormat)
	log.Debugf("Config loaded, transport %T", globalHttpTransport)
	return nil
}

// initLogging configures logrus from level and format names.
func initLogging(level, format string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Invalid log level '%s', using info: %v", level, err)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func closeTransport() {
	if closer, ok := globalHttpTransport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("Failed to close API log")
		}
	}
	globalHttpTransport = nil
}

func newAPIClient() *api.Client {
	transport := globalHttpTransport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(globalConfig.APIClientTimeoutSec) * time.Second,
	}
	return api.NewClient(globalConfig.BaseURL, globalConfig.APIKey, httpClient)
}

func newSession() *session.Session {
	var sharer artifact.Sharer
	if s := artifact.NewCommandSharer(globalConfig.Share.Command, globalConfig.Share.Title, globalConfig.Share.Text); s != nil {
		sharer = s
	}
	manager := artifact.NewManager(artifact.NewExecClipboard(), sharer)

	return session.New(newAPIClient(), manager,
		session.WithMaxFileSize(int64(globalConfig.MaxFileSizeMB)<<20),
		session.WithFilenamePattern(globalConfig.Convert.FilenamePattern),
		session.WithInput(config.ConvertInput(globalConfig)),
	)
}
