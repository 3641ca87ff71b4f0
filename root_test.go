package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pdfwatch/internal/config"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests must either:
//   - Set globals AFTER newRootCmd() returns (direct function tests), or
//   - Use cmd.SetArgs() + cmd.Execute() to let Cobra parse flags (integration tests).
//
// Setting a global before newRootCmd() and expecting it to survive is a bug.

// saveGlobals restores the CLI globals when the test ends.
func saveGlobals(t *testing.T) {
	t.Helper()

	oldCfg := resolvedCfg
	oldConfigPath := flagConfigPath
	oldJSON := flagJSON
	oldVerbose := flagVerbose
	oldQuiet := flagQuiet

	t.Cleanup(func() {
		resolvedCfg = oldCfg
		flagConfigPath = oldConfigPath
		flagJSON = oldJSON
		flagVerbose = oldVerbose
		flagQuiet = oldQuiet
	})
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	saveGlobals(t)

	cmd := newRootCmd()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

// missingConfig returns a --config path that does not exist, so tests run
// on defaults regardless of the developer's own config file.
func missingConfig(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "absent.toml")
}

// --- logger tests ---

func TestBootstrapLogger_Default(t *testing.T) {
	saveGlobals(t)

	flagVerbose = false
	flagQuiet = false

	logger := bootstrapLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestBootstrapLogger_Verbose(t *testing.T) {
	saveGlobals(t)

	flagVerbose = true
	flagQuiet = false

	logger := bootstrapLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogger_DefaultInfo(t *testing.T) {
	saveGlobals(t)

	resolvedCfg = nil
	flagVerbose = false
	flagQuiet = false

	logger := newLogger(&bytes.Buffer{}, true)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogger_ConfigLevel(t *testing.T) {
	saveGlobals(t)

	resolvedCfg = &config.Resolved{LogLevel: "warn", LogFormat: "text"}
	flagVerbose = false
	flagQuiet = false

	logger := newLogger(&bytes.Buffer{}, true)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestNewLogger_VerboseOverridesConfig(t *testing.T) {
	saveGlobals(t)

	resolvedCfg = &config.Resolved{LogLevel: "error", LogFormat: "text"}
	flagVerbose = true
	flagQuiet = false

	logger := newLogger(&bytes.Buffer{}, true)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogger_QuietWins(t *testing.T) {
	saveGlobals(t)

	resolvedCfg = &config.Resolved{LogLevel: "debug", LogFormat: "text"}
	flagVerbose = false
	flagQuiet = true

	logger := newLogger(&bytes.Buffer{}, true)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		tty      bool
		wantJSON bool
	}{
		{"auto on terminal", "auto", true, false},
		{"auto when piped", "auto", false, true},
		{"forced text", "text", false, false},
		{"forced json", "json", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saveGlobals(t)

			resolvedCfg = &config.Resolved{LogLevel: "info", LogFormat: tt.format}
			flagVerbose = false
			flagQuiet = false

			var buf bytes.Buffer

			newLogger(&buf, tt.tty).Info("hello", slog.String("k", "v"))

			line := strings.TrimSpace(buf.String())
			assert.Equal(t, tt.wantJSON, strings.HasPrefix(line, "{"), line)
		})
	}
}

// --- command wiring ---

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	saveGlobals(t)

	cmd := newRootCmd()

	for _, name := range []string{"watch", "merge", "history", "config"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestLoadConfig_DirArgAndFlags(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, "config", "show", "--config", missingConfig(t))
	require.NoError(t, err)
	assert.Empty(t, resolvedCfg.WatchDir, "config show takes no DIR")

	cmd := newRootCmd()
	saveGlobals(t)

	watchCmd, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)
	require.NoError(t, watchCmd.Flags().Set("debounce", "750ms"))
	require.NoError(t, watchCmd.Flags().Set("metrics-addr", ":9464"))

	flagConfigPath = missingConfig(t)
	require.NoError(t, loadConfig(watchCmd, []string{dir}))

	assert.Equal(t, dir, resolvedCfg.WatchDir)
	assert.Equal(t, "750ms", resolvedCfg.Debounce.String())
	assert.Equal(t, ":9464", resolvedCfg.MetricsAddr)
}

func TestLoadConfig_BadConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "debounce = \"fast\"\n")

	_, err := runCLI(t, "config", "show", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestConfigShow_JSON(t *testing.T) {
	out, err := runCLI(t, "config", "show", "--config", missingConfig(t), "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"extension": ".pdf"`)
	assert.Contains(t, out, `"event_queue_size": 64`)
}
