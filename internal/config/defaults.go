package config

// Default values for configuration options. These are "layer 0" of the
// override chain and work without any config file.
const (
	defaultDebounce       = "3s"
	defaultExtension      = ".pdf"
	defaultEventQueueSize = 64
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		WatchConfig:     defaultWatchConfig(),
		RecordingConfig: defaultRecordingConfig(),
		LoggingConfig:   defaultLoggingConfig(),
	}
}

func defaultWatchConfig() WatchConfig {
	return WatchConfig{
		Debounce:       defaultDebounce,
		Extension:      defaultExtension,
		EventQueueSize: defaultEventQueueSize,
	}
}

func defaultRecordingConfig() RecordingConfig {
	return RecordingConfig{
		History: true,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}
