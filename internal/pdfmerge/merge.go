// Package pdfmerge concatenates the pages of a set of PDF documents into a
// single new document. Unreadable inputs are recorded and skipped; the
// batch only produces output when at least two inputs could be read.
package pdfmerge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Output naming.
const (
	OutputPrefix    = "merged_output_"
	TimestampLayout = "20060102_150405"
	partialSuffix   = ".partial"
	minInputs       = 2

	// CreateTemp makes 0600 files; outputs match ordinary documents.
	outputPermissions = 0o644
)

// ErrWrite is returned when the merged document cannot be written. The
// source files are left untouched and no partial output remains under the
// final name.
var ErrWrite = errors.New("pdfmerge: writing merged output failed")

func init() {
	// pdfcpu otherwise installs config.yml and fonts under the user config
	// dir on first use.
	api.DisableConfigDir()
}

// FileFailure records one input that could not be read.
type FileFailure struct {
	Path string
	Err  error
}

func (f FileFailure) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(f.Path), f.Err)
}

// Candidate is one successfully-read input and its page count.
type Candidate struct {
	Path  string
	Pages int
}

// Result describes one merge attempt. OutputPath is empty when the attempt
// was skipped for lack of usable inputs.
type Result struct {
	Timestamp  time.Time
	OutputPath string
	TotalPages int

	// InputPaths lists every candidate in merge order, readable or not.
	InputPaths []string
	Merged     []Candidate
	Failures   []FileFailure
}

// Skipped reports whether the attempt produced no output.
func (r *Result) Skipped() bool {
	return r.OutputPath == ""
}

// Stamp returns the cycle timestamp in output-name form.
func (r *Result) Stamp() string {
	return r.Timestamp.Format(TimestampLayout)
}

// OutputName returns the file name of the merged document for ts.
func OutputName(ts time.Time) string {
	return OutputPrefix + ts.Format(TimestampLayout) + ".pdf"
}

// Engine merges PDF documents. The zero value is not usable; call NewEngine.
type Engine struct {
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewEngine creates an Engine that timestamps outputs with the local clock.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		logger: logger,
		nowFn:  time.Now,
	}
}

// Merge concatenates paths, sorted by file name, into a new document in
// dir. Per-file read errors land in Result.Failures. The only error
// returned is a batch-level one: a canceled context before writing, or a
// failed write wrapped in ErrWrite.
func (e *Engine) Merge(ctx context.Context, dir string, paths []string) (*Result, error) {
	ts := e.nowFn()
	sorted := SortByName(paths)

	result := &Result{
		Timestamp:  ts,
		InputPaths: sorted,
	}

	if len(sorted) < minInputs {
		e.logger.Info("not enough documents to merge",
			slog.Int("found", len(sorted)),
			slog.Int("required", minInputs),
		)

		return result, nil
	}

	e.logger.Info("merge starting",
		slog.Int("candidates", len(sorted)),
		slog.String("output", OutputName(ts)),
	)

	conf := newConfiguration()

	var sources []io.ReadSeeker

	for _, p := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pdfmerge: merge canceled: %w", err)
		}

		rs, pages, err := readDocument(p, conf)
		if err != nil {
			e.logger.Warn("skipping unreadable document",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)

			result.Failures = append(result.Failures, FileFailure{Path: p, Err: err})

			continue
		}

		e.logger.Debug("document added",
			slog.String("path", p),
			slog.Int("pages", pages),
		)

		sources = append(sources, rs)
		result.Merged = append(result.Merged, Candidate{Path: p, Pages: pages})
		result.TotalPages += pages
	}

	if len(sources) < minInputs {
		e.logger.Info("not enough readable documents to merge",
			slog.Int("readable", len(sources)),
			slog.Int("failed", len(result.Failures)),
		)

		result.TotalPages = 0
		result.Merged = nil

		return result, nil
	}

	outPath := filepath.Join(dir, OutputName(ts))
	if err := writeAtomic(outPath, sources, conf); err != nil {
		return nil, err
	}

	result.OutputPath = outPath

	e.logger.Info("merge complete",
		slog.String("output", outPath),
		slog.Int("documents", len(result.Merged)),
		slog.Int("pages", result.TotalPages),
		slog.Int("failures", len(result.Failures)),
	)

	return result, nil
}

// readDocument loads path and verifies it parses as a PDF with at least
// one page. The returned reader is positioned at the start of the data.
func readDocument(path string, conf *model.Configuration) (io.ReadSeeker, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading: %w", err)
	}

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing: %w", err)
	}

	if pages == 0 {
		return nil, 0, errors.New("document has no pages")
	}

	return bytes.NewReader(data), pages, nil
}

// writeAtomic merges sources into a hidden temp file next to outPath and
// renames it into place, so an interrupted write never leaves a truncated
// document under the final name.
func writeAtomic(outPath string, sources []io.ReadSeeker, conf *model.Configuration) error {
	dir := filepath.Dir(outPath)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outPath)+".*"+partialSuffix)
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrWrite, err)
	}

	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := api.MergeRaw(sources, tmp, false, conf); err != nil {
		cleanup()

		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()

		return fmt.Errorf("%w: syncing: %w", ErrWrite, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("%w: closing: %w", ErrWrite, err)
	}

	if err := os.Chmod(tmpPath, outputPermissions); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("%w: setting permissions: %w", ErrWrite, err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("%w: renaming into place: %w", ErrWrite, err)
	}

	return nil
}

// newConfiguration returns a fresh pdfcpu configuration per merge; pdfcpu
// mutates it while processing.
func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return conf
}
