package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated TOML-like
// summary to w. This powers "config show", showing the values in effect after
// all override layers have been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", displayPath(r.ConfigPath))

	renderWatchSection(ew, r)
	renderRecordingSection(ew, r)
	renderLoggingSection(ew, r)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderWatchSection(ew *errWriter, r *Resolved) {
	ew.printf("# watch\n")

	if r.WatchDir != "" {
		ew.printf("watch_dir        = %q\n", r.WatchDir)
	} else {
		ew.printf("# watch_dir unset: watch prompts for a directory\n")
	}

	ew.printf("debounce         = %q\n", r.Debounce.String())
	ew.printf("extension        = %q\n", r.Extension)
	ew.printf("event_queue_size = %d\n", r.EventQueueSize)
	ew.printf("\n")
}

func renderRecordingSection(ew *errWriter, r *Resolved) {
	ew.printf("# recording\n")
	ew.printf("history      = %t\n", r.History)

	if r.History {
		ew.printf("# history database: %s\n", displayPath(r.HistoryPath))
	}

	ew.printf("metrics_addr = %q\n", r.MetricsAddr)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, r *Resolved) {
	ew.printf("# logging\n")
	ew.printf("log_level  = %q\n", r.LogLevel)
	ew.printf("log_format = %q\n", r.LogFormat)
}

func displayPath(p string) string {
	if p == "" {
		return "(none)"
	}

	return p
}
