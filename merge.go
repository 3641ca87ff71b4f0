package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pdfwatch/internal/archive"
	"github.com/tonimelisma/pdfwatch/internal/watch"
)

// mergeSummary is the JSON and text view of a one-shot merge.
type mergeSummary struct {
	Dir        string   `json:"dir"`
	Candidates int      `json:"candidates"`
	Skipped    bool     `json:"skipped"`
	Output     string   `json:"output,omitempty"`
	OutputSize int64    `json:"output_size,omitempty"`
	Pages      int      `json:"pages"`
	Merged     []string `json:"merged"`
	Unreadable []string `json:"unreadable,omitempty"`
	ArchiveDir string   `json:"archive_dir,omitempty"`
	NotMoved   []string `json:"not_moved,omitempty"`
}

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [DIR]",
		Short: "Merge the PDFs present in a directory once",
		Long: `Merge every PDF currently in DIR (default: watch_dir, then the current
directory) into merged_output_<timestamp>.pdf, without waiting for new files.
With --archive the batch is also moved into merged_<timestamp>/ and the
cycle is recorded, exactly like a watch cycle.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMerge,
	}

	cmd.Flags().Bool("archive", false, "move sources and output into an archive folder")

	return cmd
}

func runMerge(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	cfg := resolvedCfg

	dir := cfg.WatchDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determining current directory: %w", err)
		}

		dir = wd
	}

	if err := checkDirectory(dir); err != nil {
		return fmt.Errorf("%w: %w", watch.ErrWatchDirUnavailable, err)
	}

	archiveBatch, err := cmd.Flags().GetBool("archive")
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	wcfg := &watch.Config{
		Dir:       dir,
		Extension: cfg.Extension,
		Logger:    logger,
	}

	if archiveBatch {
		store, err := openHistory(ctx, cfg, logger)
		if err != nil {
			return err
		}

		if store != nil {
			defer store.Close()

			wcfg.Recorder = store
		}
	} else {
		wcfg.Archiver = keepInPlace{}
	}

	orch, err := watch.New(wcfg)
	if err != nil {
		return err
	}

	report, err := orch.RunCycle(ctx)
	if err != nil {
		return err
	}

	summary := summarize(orch.Dir(), report)

	if flagJSON {
		return printMergeJSON(cmd.OutOrStdout(), summary)
	}

	printMergeText(cmd.OutOrStdout(), summary)

	return nil
}

// keepInPlace is the Archiver for merges without --archive.
type keepInPlace struct{}

func (keepInPlace) Archive(string, string, []string) (*archive.Result, error) {
	return &archive.Result{}, nil
}

func summarize(dir string, report *watch.CycleReport) *mergeSummary {
	s := &mergeSummary{
		Dir:        dir,
		Candidates: len(report.Candidates),
		Skipped:    report.Merge == nil || report.Merge.Skipped(),
		Merged:     []string{},
	}

	if report.Merge == nil {
		return s
	}

	for _, f := range report.Merge.Failures {
		s.Unreadable = append(s.Unreadable, filepath.Base(f.Path))
	}

	if s.Skipped {
		return s
	}

	s.Pages = report.Merge.TotalPages
	s.Output = report.Merge.OutputPath

	for _, c := range report.Merge.Merged {
		s.Merged = append(s.Merged, filepath.Base(c.Path))
	}

	if ar := report.Archive; ar != nil && ar.Folder != "" {
		s.ArchiveDir = ar.Folder

		moved := true

		for _, f := range ar.Failures {
			s.NotMoved = append(s.NotMoved, filepath.Base(f.Path))

			if f.Path == s.Output {
				moved = false
			}
		}

		if moved {
			s.Output = filepath.Join(ar.Folder, filepath.Base(s.Output))
		}
	}

	s.OutputSize = -1
	if info, err := os.Stat(s.Output); err == nil {
		s.OutputSize = info.Size()
	}

	return s
}

func printMergeJSON(w io.Writer, s *mergeSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(s)
}

func printMergeText(w io.Writer, s *mergeSummary) {
	if s.Skipped {
		fmt.Fprintf(w, "Found %d PDF(s) in %s. Need at least 2 readable PDFs to merge.\n", s.Candidates, s.Dir)

		for _, name := range s.Unreadable {
			fmt.Fprintf(w, "  unreadable: %s\n", name)
		}

		return
	}

	fmt.Fprintf(w, "Merged %d of %d PDF(s), %d pages, %s\n", len(s.Merged), s.Candidates, s.Pages, formatSize(s.OutputSize))
	fmt.Fprintf(w, "  File: %s\n", s.Output)

	for _, name := range s.Unreadable {
		fmt.Fprintf(w, "  skipped unreadable: %s\n", name)
	}

	if s.ArchiveDir != "" {
		fmt.Fprintf(w, "  Archived to: %s\n", s.ArchiveDir)
	}

	for _, name := range s.NotMoved {
		fmt.Fprintf(w, "  could not move: %s\n", name)
	}
}
