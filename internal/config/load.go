package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string, logger *slog.Logger) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file loaded", slog.String("path", path), slog.Int("keys", len(md.Keys())))

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("no config file, using defaults", slog.String("path", path))

		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath, logger)
	if err != nil {
		return nil, err
	}

	// Validate has already accepted the duration string.
	debounce, err := time.ParseDuration(cfg.Debounce)
	if err != nil {
		return nil, fmt.Errorf("debounce: %w", err)
	}

	resolved := &Resolved{
		ConfigPath:     cfgPath,
		WatchDir:       cfg.WatchDir,
		Debounce:       debounce,
		Extension:      cfg.Extension,
		EventQueueSize: cfg.EventQueueSize,
		History:        cfg.History,
		MetricsAddr:    cfg.MetricsAddr,
		LogLevel:       cfg.LogLevel,
		LogFormat:      cfg.LogFormat,
	}

	if dataDir := DefaultDataDir(); dataDir != "" {
		resolved.HistoryPath = filepath.Join(dataDir, historyFileName)
	}

	// 3. Apply env overrides
	if env.WatchDir != "" {
		resolved.WatchDir = env.WatchDir
	}

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.WatchDir != nil {
		resolved.WatchDir = *cli.WatchDir
	}

	if cli.Debounce != nil {
		resolved.Debounce = *cli.Debounce
	}

	if cli.MetricsAddr != nil {
		resolved.MetricsAddr = *cli.MetricsAddr
	}

	if resolved.WatchDir != "" {
		abs, err := filepath.Abs(expandTilde(resolved.WatchDir))
		if err != nil {
			return nil, fmt.Errorf("watch_dir: %w", err)
		}

		resolved.WatchDir = abs
	}

	// 5. Validate the final resolved values
	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}
