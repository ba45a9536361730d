package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go-photoid/internal/api"
	"go-photoid/internal/devbackend"
	"go-photoid/internal/models"
	"go-photoid/internal/outputspec"
	"go-photoid/internal/paths"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultBaseURL             = api.DefaultBaseURL
	DefaultLogApiRequests      = false
	DefaultAPIClientTimeoutSec = 60 // seconds
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultConfigFilePath      = "config.toml"
	DefaultOutputDir           = "."
	DefaultMaxFileSizeMB       = 10
	DefaultAPILogFile          = "api.log"

	DefaultConvertMode         = string(outputspec.ModePreset)
	DefaultConvertPreset       = string(outputspec.DefaultPreset)
	DefaultConvertCustomWidth  = outputspec.DefaultCustomWidth
	DefaultConvertCustomHeight = outputspec.DefaultCustomHeight
	DefaultConvertPattern      = paths.DefaultFilenamePattern

	DefaultShareTitle = "PhotoID"
	DefaultShareText  = "My ID photo"
)

// EnvPrefix is prepended to every environment override, e.g. PHOTOID_BASEURL
// or PHOTOID_CONVERT_PRESET.
const EnvPrefix = "PHOTOID"

// setViperDefaults configures Viper with the application's default values.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("baseurl", DefaultBaseURL)
	v.SetDefault("apikey", "")
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)
	v.SetDefault("logapirequests", DefaultLogApiRequests)
	v.SetDefault("apiclienttimeoutsec", DefaultAPIClientTimeoutSec)
	v.SetDefault("outputdir", DefaultOutputDir)
	v.SetDefault("maxfilesizemb", DefaultMaxFileSizeMB)

	v.SetDefault("convert.mode", DefaultConvertMode)
	v.SetDefault("convert.preset", DefaultConvertPreset)
	v.SetDefault("convert.customwidth", DefaultConvertCustomWidth)
	v.SetDefault("convert.customheight", DefaultConvertCustomHeight)
	v.SetDefault("convert.filenamepattern", DefaultConvertPattern)
	v.SetDefault("convert.copy", false)
	v.SetDefault("convert.share", false)

	v.SetDefault("share.command", "")
	v.SetDefault("share.title", DefaultShareTitle)
	v.SetDefault("share.text", DefaultShareText)

	v.SetDefault("devbackend.addr", devbackend.DefaultAddr)
	v.SetDefault("devbackend.maxuploadmb", devbackend.DefaultMaxUploadMB)
	v.SetDefault("devbackend.hourlylimit", devbackend.DefaultHourlyLimit)
	v.SetDefault("devbackend.dailylimit", devbackend.DefaultDailyLimit)
}

// CliFlags holds pointers to flag values. A nil pointer means the flag was
// not given and the file/env/default value stands.
type CliFlags struct {
	ConfigFilePath      *string
	BaseURL             *string
	APIKey              *string
	LogApiRequests      *bool
	APIClientTimeoutSec *int
	LogLevel            *string
	LogFormat           *string
	OutputDir           *string
	MaxFileSizeMB       *int

	Convert    *CliConvertFlags
	DevBackend *CliDevBackendFlags
}

type CliConvertFlags struct {
	Mode            *string // --mode
	Preset          *string // --preset
	CustomWidth     *int    // --width
	CustomHeight    *int    // --height
	FilenamePattern *string // --name-pattern
	Copy            *bool   // --copy
	Share           *bool   // --share
}

type CliDevBackendFlags struct {
	Addr        *string // --addr
	MaxUploadMB *int    // --max-upload-mb
	HourlyLimit *int    // --hourly-limit
	DailyLimit  *int    // --daily-limit
}

// Initialize loads configuration based on defaults, config file, environment and flags.
// Precedence: Flags > Environment > Config File > Defaults.
func Initialize(flags CliFlags) (models.Config, http.RoundTripper, error) {
	var finalCfg models.Config

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)

	actualConfigFilePath := DefaultConfigFilePath
	if flags.ConfigFilePath != nil && *flags.ConfigFilePath != "" {
		actualConfigFilePath = *flags.ConfigFilePath
		log.Debugf("[Initialize] Using config file path from CLI flag: %s", actualConfigFilePath)
	} else {
		log.Debugf("[Initialize] Using default config file path: %s", actualConfigFilePath)
	}
	v.SetConfigFile(actualConfigFilePath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.Is(err, fs.ErrNotExist), errors.As(err, &notFound):
			log.Debugf("[Initialize] Config file '%s' not found. Using defaults, environment and CLI flags only.", actualConfigFilePath)
		default:
			log.Warnf("[Initialize] Error reading config file '%s': %v. Using defaults, environment and CLI flags only.", actualConfigFilePath, err)
		}
	} else {
		log.Infof("[Initialize] Successfully read config file: %s", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&finalCfg); err != nil {
		log.Errorf("[Initialize] Failed to unmarshal config from Viper: %v", err)
		return models.Config{}, nil, fmt.Errorf("failed to unmarshal config from viper: %w", err)
	}

	applyFlagOverrides(&finalCfg, flags)

	if err := Validate(finalCfg); err != nil {
		return models.Config{}, nil, err
	}

	var finalTransport http.RoundTripper = http.DefaultTransport
	if finalCfg.LogApiRequests {
		logFilePath := DefaultAPILogFile
		if finalCfg.OutputDir != "" {
			if info, statErr := os.Stat(finalCfg.OutputDir); statErr == nil && info.IsDir() {
				logFilePath = filepath.Join(finalCfg.OutputDir, DefaultAPILogFile)
			} else {
				log.Warnf("OutputDir '%s' not found, saving %s to current directory.", finalCfg.OutputDir, DefaultAPILogFile)
			}
		}
		log.Infof("API logging to file: %s", logFilePath)

		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			finalTransport = loggingTransport
		}
	}

	log.Debugf("[Initialize] Final config: BaseURL=%s Convert=%+v DevBackend=%+v", finalCfg.BaseURL, finalCfg.Convert, finalCfg.DevBackend)
	return finalCfg, finalTransport, nil
}

func applyFlagOverrides(cfg *models.Config, flags CliFlags) {
	if flags.BaseURL != nil {
		log.Debugf("[Initialize] Overriding BaseURL from flag: '%s'", *flags.BaseURL)
		cfg.BaseURL = *flags.BaseURL
	}
	if flags.APIKey != nil {
		log.Debugf("[Initialize] Overriding APIKey from flag.")
		cfg.APIKey = *flags.APIKey
	}
	if flags.LogApiRequests != nil {
		cfg.LogApiRequests = *flags.LogApiRequests
	}
	if flags.APIClientTimeoutSec != nil {
		cfg.APIClientTimeoutSec = *flags.APIClientTimeoutSec
	}
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.OutputDir != nil {
		log.Debugf("[Initialize] Overriding OutputDir from flag: '%s'", *flags.OutputDir)
		cfg.OutputDir = *flags.OutputDir
	}
	if flags.MaxFileSizeMB != nil {
		cfg.MaxFileSizeMB = *flags.MaxFileSizeMB
	}

	if c := flags.Convert; c != nil {
		if c.Mode != nil {
			cfg.Convert.Mode = *c.Mode
		}
		if c.Preset != nil {
			cfg.Convert.Preset = *c.Preset
		}
		if c.CustomWidth != nil {
			cfg.Convert.CustomWidth = *c.CustomWidth
		}
		if c.CustomHeight != nil {
			cfg.Convert.CustomHeight = *c.CustomHeight
		}
		if c.FilenamePattern != nil {
			cfg.Convert.FilenamePattern = *c.FilenamePattern
		}
		if c.Copy != nil {
			cfg.Convert.Copy = *c.Copy
		}
		if c.Share != nil {
			cfg.Convert.Share = *c.Share
		}
		log.Debugf("[Initialize] Convert after CLI overrides: %+v", cfg.Convert)
	}

	if d := flags.DevBackend; d != nil {
		if d.Addr != nil {
			cfg.DevBackend.Addr = *d.Addr
		}
		if d.MaxUploadMB != nil {
			cfg.DevBackend.MaxUploadMB = *d.MaxUploadMB
		}
		if d.HourlyLimit != nil {
			cfg.DevBackend.HourlyLimit = *d.HourlyLimit
		}
		if d.DailyLimit != nil {
			cfg.DevBackend.DailyLimit = *d.DailyLimit
		}
	}
}

// Validate checks the merged configuration.
func Validate(cfg models.Config) error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("BaseURL cannot be empty (set via --base-url flag, PHOTOID_BASEURL or BaseURL in config)")
	}
	if cfg.APIClientTimeoutSec <= 0 {
		return fmt.Errorf("ApiClientTimeoutSec must be positive, got %d", cfg.APIClientTimeoutSec)
	}
	if cfg.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MaxFileSizeMB must be positive, got %d", cfg.MaxFileSizeMB)
	}
	if _, err := outputspec.ParseMode(cfg.Convert.Mode); err != nil {
		return fmt.Errorf("invalid Convert.Mode: %w", err)
	}
	if _, ok := outputspec.LookupPreset(outputspec.PresetID(cfg.Convert.Preset)); !ok {
		return fmt.Errorf("invalid Convert.Preset: %w: %q", outputspec.ErrUnknownPreset, cfg.Convert.Preset)
	}
	if err := paths.ValidatePattern(cfg.Convert.FilenamePattern); err != nil {
		return fmt.Errorf("invalid Convert.FilenamePattern: %w", err)
	}
	return nil
}

// ConvertInput turns the Convert section into the session's size input.
// Custom dimensions are passed through unchecked; the session validates them at submit.
func ConvertInput(cfg models.Config) outputspec.Input {
	mode, err := outputspec.ParseMode(cfg.Convert.Mode)
	if err != nil {
		mode = outputspec.ModePreset
	}
	return outputspec.Input{
		Mode:         mode,
		Preset:       outputspec.PresetID(cfg.Convert.Preset),
		CustomWidth:  cfg.Convert.CustomWidth,
		CustomHeight: cfg.Convert.CustomHeight,
	}
}
