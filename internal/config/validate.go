package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"
)

// Validation range constants.
const (
	minDebounce       = 100 * time.Millisecond
	minEventQueueSize = 1
	maxEventQueueSize = 4096
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateWatch(&cfg.WatchConfig)...)
	errs = append(errs, validateRecording(&cfg.RecordingConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints on the final merged result, after
// env and CLI overrides that Validate never saw.
func ValidateResolved(r *Resolved) error {
	var errs []error

	if r.WatchDir != "" && !filepath.IsAbs(r.WatchDir) {
		errs = append(errs, fmt.Errorf("watch_dir: must be absolute after expansion, got %q", r.WatchDir))
	}

	if r.Debounce < minDebounce {
		errs = append(errs, fmt.Errorf("debounce: must be >= %s, got %s", minDebounce, r.Debounce))
	}

	errs = append(errs, validateMetricsAddr(r.MetricsAddr)...)

	return errors.Join(errs...)
}

func validateWatch(w *WatchConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("debounce", w.Debounce, minDebounce)...)

	if !strings.HasPrefix(w.Extension, ".") || len(w.Extension) < 2 {
		errs = append(errs, fmt.Errorf("extension: must start with \".\" and name a suffix, got %q", w.Extension))
	}

	if w.EventQueueSize < minEventQueueSize || w.EventQueueSize > maxEventQueueSize {
		errs = append(errs, fmt.Errorf("event_queue_size: must be between %d and %d, got %d",
			minEventQueueSize, maxEventQueueSize, w.EventQueueSize))
	}

	return errs
}

func validateRecording(r *RecordingConfig) []error {
	return validateMetricsAddr(r.MetricsAddr)
}

func validateMetricsAddr(addr string) []error {
	if addr == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		return []error{fmt.Errorf("metrics_addr: invalid listen address %q: %w", addr, err)}
	}

	return nil
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}
