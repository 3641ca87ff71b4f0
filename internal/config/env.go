package config

import (
	"log/slog"
	"os"
)

// Environment variable names for overrides.
const (
	EnvConfig   = "PDFWATCH_CONFIG"
	EnvWatchDir = "PDFWATCH_WATCH_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // PDFWATCH_CONFIG: override config file path
	WatchDir   string // PDFWATCH_WATCH_DIR: watched directory override
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides(logger *slog.Logger) EnvOverrides {
	env := EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		WatchDir:   os.Getenv(EnvWatchDir),
	}

	if env.ConfigPath != "" {
		logger.Debug("config path from environment", slog.String("path", env.ConfigPath))
	}

	if env.WatchDir != "" {
		logger.Debug("watch dir from environment", slog.String("dir", env.WatchDir))
	}

	return env
}
