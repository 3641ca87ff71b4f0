package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/pdfwatch/internal/archive"
	"github.com/tonimelisma/pdfwatch/internal/config"
	"github.com/tonimelisma/pdfwatch/internal/history"
	"github.com/tonimelisma/pdfwatch/internal/metrics"
	"github.com/tonimelisma/pdfwatch/internal/pdfmerge"
	"github.com/tonimelisma/pdfwatch/internal/watch"
)

const bannerRule = "============================================================"

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Watch a directory and merge PDFs as they arrive",
		Long: `Watch DIR (or watch_dir from the config file) for new PDF files. Once no
new file has arrived for the debounce delay, every PDF in the directory is
merged into merged_output_<timestamp>.pdf and the batch is moved into a
merged_<timestamp> folder.

Without DIR or watch_dir, pdfwatch asks which directory to watch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period after the last new file before merging")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg

	dir := cfg.WatchDir
	if dir == "" {
		exeDir, err := executableDir()
		if err != nil {
			return err
		}

		dir, err = promptWatchDir(cmd.InOrStdin(), cmd.OutOrStdout(), exeDir)
		if err != nil {
			return err
		}
	}

	if err := checkDirectory(dir); err != nil {
		return fmt.Errorf("%w: %w", watch.ErrWatchDirUnavailable, err)
	}

	cleanup, err := writePIDFile(config.PIDFilePath())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := shutdownContext(cmd.Context(), logger)

	store, err := openHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// A nil *history.Store must not become a non-nil Recorder.
	var recorder watch.Recorder
	if store != nil {
		defer store.Close()

		recorder = store
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
	}

	orch, err := watch.New(&watch.Config{
		Dir:       dir,
		Extension: cfg.Extension,
		Debounce:  cfg.Debounce,
		QueueSize: cfg.EventQueueSize,
		Recorder:  recorder,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if !flagQuiet {
		printBanner(cmd.ErrOrStderr(), orch.Dir(), orch.Scheduler().Delay(), cfg.Extension)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orch.Run(gctx)
	})

	if m != nil {
		g.Go(func() error {
			return m.Serve(gctx, cfg.MetricsAddr, logger)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	statusf(flagQuiet, "Watcher stopped.\n")

	return nil
}

// openHistory opens the cycle ledger, or returns nil when history is off.
func openHistory(ctx context.Context, cfg *config.Resolved, logger *slog.Logger) (*history.Store, error) {
	if !cfg.History {
		return nil, nil
	}

	if cfg.HistoryPath == "" {
		return nil, errors.New("history enabled but no data directory is available")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.HistoryPath), pidDirPermissions); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	store, err := history.Open(ctx, cfg.HistoryPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	return store, nil
}

// printBanner writes the startup notice describing what is being watched.
func printBanner(w io.Writer, dir string, delay time.Duration, ext string) {
	if ext == "" {
		ext = ".pdf"
	}

	stamp := strings.NewReplacer("2006", "YYYY", "01", "MM", "02", "DD", "15", "HH", "04", "MM", "05", "SS").
		Replace(pdfmerge.TimestampLayout)

	fmt.Fprintln(w, bannerRule)
	fmt.Fprintln(w, "pdfwatch: folder watcher with auto-merge")
	fmt.Fprintln(w, bannerRule)
	fmt.Fprintf(w, "Watching directory: %s\n", dir)
	fmt.Fprintln(w, "\nSettings:")
	fmt.Fprintf(w, "  - Auto-merge delay: %s after the last %s detected\n", delay, ext)
	fmt.Fprintf(w, "  - Merged files will be named: %s%s.pdf\n", pdfmerge.OutputPrefix, stamp)
	fmt.Fprintf(w, "  - Batches are archived into: %s%s/\n", archive.FolderPrefix, stamp)
	fmt.Fprintln(w, "\nPress Ctrl+C to stop watching.")
	fmt.Fprintln(w, bannerRule)
}
