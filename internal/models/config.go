package models

type (
	// Config holds the application's configuration settings.
	Config struct {
		BaseURL             string           `toml:"BaseURL" json:"BaseURL"`
		APIKey              string           `toml:"ApiKey" json:"ApiKey"`
		LogLevel            string           `toml:"LogLevel" json:"LogLevel"`
		LogFormat           string           `toml:"LogFormat" json:"LogFormat"`
		OutputDir           string           `toml:"OutputDir" json:"OutputDir"`
		Convert             ConvertConfig    `toml:"Convert" json:"Convert"`
		Share               ShareConfig      `toml:"Share" json:"Share"`
		DevBackend          DevBackendConfig `toml:"DevBackend" json:"DevBackend"`
		APIClientTimeoutSec int              `toml:"ApiClientTimeoutSec" json:"ApiClientTimeoutSec"`
		MaxFileSizeMB       int              `toml:"MaxFileSizeMB" json:"MaxFileSizeMB"`
		LogApiRequests      bool             `toml:"LogApiRequests" json:"LogApiRequests"`
	}

	// ConvertConfig holds the size selection and post-success actions used by 'convert' and 'shell'.
	ConvertConfig struct {
		Mode            string `toml:"Mode" json:"Mode"`
		Preset          string `toml:"Preset" json:"Preset"`
		FilenamePattern string `toml:"FilenamePattern" json:"FilenamePattern"`
		CustomWidth     int    `toml:"CustomWidth" json:"CustomWidth"`
		CustomHeight    int    `toml:"CustomHeight" json:"CustomHeight"`
		Copy            bool   `toml:"Copy" json:"Copy"`
		Share           bool   `toml:"Share" json:"Share"`
	}

	// ShareConfig configures the native share command. An empty Command disables sharing.
	ShareConfig struct {
		Command string `toml:"Command" json:"Command"`
		Title   string `toml:"Title" json:"Title"`
		Text    string `toml:"Text" json:"Text"`
	}

	// DevBackendConfig holds settings for the local stand-in processing service.
	DevBackendConfig struct {
		Addr        string `toml:"Addr" json:"Addr"`
		MaxUploadMB int    `toml:"MaxUploadMB" json:"MaxUploadMB"`
		HourlyLimit int    `toml:"HourlyLimit" json:"HourlyLimit"` // negative disables
		DailyLimit  int    `toml:"DailyLimit" json:"DailyLimit"`   // negative disables
	}
)
