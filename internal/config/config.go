// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for pdfwatch. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
// All keys are flat; the sub-structs below only group related fields.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	WatchConfig
	RecordingConfig
	LoggingConfig
}

// WatchConfig controls which directory is watched and how bursts of file
// arrivals are coalesced into merge cycles.
type WatchConfig struct {
	WatchDir       string `toml:"watch_dir"`
	Debounce       string `toml:"debounce"`
	Extension      string `toml:"extension"`
	EventQueueSize int    `toml:"event_queue_size"`
}

// RecordingConfig controls the cycle history ledger and the metrics endpoint.
type RecordingConfig struct {
	History     bool   `toml:"history"`
	MetricsAddr string `toml:"metrics_addr"`
}

// LoggingConfig controls log output level and handler format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value", so --metrics-addr="" can disable an
// address set in the file.
type CLIOverrides struct {
	ConfigPath  string         // --config flag (empty = use default)
	WatchDir    *string        // positional DIR argument
	Debounce    *time.Duration // --debounce flag
	MetricsAddr *string        // --metrics-addr flag
}

// Resolved is the effective configuration after all override layers have
// been applied. Durations are parsed and paths expanded.
type Resolved struct {
	ConfigPath     string        `json:"config_path"`
	WatchDir       string        `json:"watch_dir"`
	Debounce       time.Duration `json:"debounce"`
	Extension      string        `json:"extension"`
	EventQueueSize int           `json:"event_queue_size"`
	History        bool          `json:"history"`
	HistoryPath    string        `json:"history_path"`
	MetricsAddr    string        `json:"metrics_addr"`
	LogLevel       string        `json:"log_level"`
	LogFormat      string        `json:"log_format"`
}
