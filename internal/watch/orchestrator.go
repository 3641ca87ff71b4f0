package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/pdfwatch/internal/archive"
	"github.com/tonimelisma/pdfwatch/internal/history"
	"github.com/tonimelisma/pdfwatch/internal/metrics"
	"github.com/tonimelisma/pdfwatch/internal/pdfmerge"
)

const defaultQueueSize = 64

// Merger merges a snapshot of candidate files. Satisfied by *pdfmerge.Engine.
type Merger interface {
	Merge(ctx context.Context, dir string, paths []string) (*pdfmerge.Result, error)
}

// Archiver relocates a cycle's files. Satisfied by *archive.Manager.
type Archiver interface {
	Archive(dir, stamp string, files []string) (*archive.Result, error)
}

// Recorder persists finished cycles. Satisfied by *history.Store.
type Recorder interface {
	Record(ctx context.Context, c *history.Cycle) error
}

// Config wires an Orchestrator. Dir is required; other fields default.
type Config struct {
	Dir       string
	Extension string
	Debounce  time.Duration
	QueueSize int

	Merger   Merger           // default pdfmerge.NewEngine
	Archiver Archiver         // default archive.NewManager
	Recorder Recorder         // nil disables history
	Metrics  *metrics.Metrics // nil disables metrics
	Logger   *slog.Logger
}

// CycleReport describes one RunCycle call.
type CycleReport struct {
	Candidates []string
	Merge      *pdfmerge.Result // nil when no candidates or on write failure
	Archive    *archive.Result  // nil unless an output was produced
}

// Orchestrator connects Monitor → Scheduler → merge → archive.
type Orchestrator struct {
	dir       string
	ext       string
	queueSize int

	monitor   *Monitor
	scheduler *Scheduler
	merger    Merger
	archiver  Archiver
	recorder  Recorder
	metrics   *metrics.Metrics
	logger    *slog.Logger

	nowFn func() time.Time
}

// New validates cfg and builds an Orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch: directory is required")
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolving %s: %w", cfg.Dir, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		dir:       dir,
		ext:       cfg.Extension,
		queueSize: cfg.QueueSize,
		merger:    cfg.Merger,
		archiver:  cfg.Archiver,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		logger:    logger,
		nowFn:     time.Now,
	}

	if o.ext == "" {
		o.ext = ".pdf"
	}

	if o.queueSize <= 0 {
		o.queueSize = defaultQueueSize
	}

	if o.merger == nil {
		o.merger = pdfmerge.NewEngine(logger)
	}

	if o.archiver == nil {
		o.archiver = archive.NewManager(logger)
	}

	o.monitor = NewMonitor(dir, o.ext, logger)
	o.scheduler = NewScheduler(cfg.Debounce, o.runScheduledCycle, logger)

	return o, nil
}

// Dir returns the absolute watched directory.
func (o *Orchestrator) Dir() string {
	return o.dir
}

// Scheduler exposes the scheduler for state inspection.
func (o *Orchestrator) Scheduler() *Scheduler {
	return o.scheduler
}

// Run watches until ctx is canceled or the directory becomes unavailable.
// Cancellation returns nil after any in-flight cycle completes; directory
// loss returns an error wrapping ErrWatchDirUnavailable.
func (o *Orchestrator) Run(ctx context.Context) error {
	events := make(chan FileEvent, o.queueSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.monitor.Watch(gctx, events)
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-events:
				o.metrics.ObserveEvent()
				o.scheduler.OnEvent(ev)
			}
		}
	})

	// A monitor error cancels gctx, which stops the scheduler once any
	// in-flight cycle has finished.
	g.Go(func() error {
		return o.scheduler.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	o.logger.Info("watch stopped", slog.String("dir", o.dir))

	return nil
}

// runScheduledCycle adapts RunCycle to CycleFunc. Errors are reported, not
// retried: the next qualifying event re-evaluates the directory.
func (o *Orchestrator) runScheduledCycle(ctx context.Context) {
	if _, err := o.RunCycle(ctx); err != nil {
		o.logger.Error("merge cycle failed", slog.String("error", err.Error()))
	}
}

// RunCycle performs one merge-and-archive pass over the files present now.
// It snapshots the listing first and operates only on that snapshot, so
// files arriving mid-cycle wait for the next one. Returned errors are
// batch-level (listing, writing, or creating the archive folder failed);
// per-file problems are carried in the report.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	started := o.nowFn()

	candidates, err := pdfmerge.ListCandidates(o.dir, o.ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWatchDirUnavailable, err)
	}

	report := &CycleReport{Candidates: candidates}

	if len(candidates) == 0 {
		o.logger.Debug("no documents present, nothing to do")
		return report, nil
	}

	o.logger.Info("merge cycle starting", slog.Int("documents", len(candidates)))

	cycle := &history.Cycle{
		ID:        history.NewCycleID(),
		StartedAt: started,
		WatchDir:  o.dir,
		Inputs:    len(candidates),
	}

	res, err := o.merger.Merge(ctx, o.dir, candidates)
	if err != nil {
		cycle.Outcome = history.OutcomeWriteFailed
		cycle.Error = err.Error()
		o.finish(ctx, cycle)

		return report, err
	}

	report.Merge = res
	cycle.ReadFailures = len(res.Failures)

	if res.Skipped() {
		o.logger.Info("waiting for more documents", slog.Int("present", len(candidates)))

		cycle.Outcome = history.OutcomeSkipped
		o.finish(ctx, cycle)

		return report, nil
	}

	cycle.Outcome = history.OutcomeMerged
	cycle.TotalPages = res.TotalPages
	cycle.OutputPath = res.OutputPath

	files := append(append([]string(nil), res.InputPaths...), res.OutputPath)

	ar, err := o.archiver.Archive(o.dir, res.Stamp(), files)
	if err != nil {
		// The merge succeeded; the output and sources stay in place.
		o.logger.Error("archiving failed", slog.String("error", err.Error()))

		cycle.Error = err.Error()
		cycle.MoveFailures = len(files)
		o.finish(ctx, cycle)

		return report, err
	}

	report.Archive = ar
	cycle.ArchiveDir = ar.Folder
	cycle.MoveFailures = len(ar.Failures)

	if ar.Folder != "" && outputMoved(ar, res.OutputPath) {
		cycle.OutputPath = filepath.Join(ar.Folder, filepath.Base(res.OutputPath))
	}

	o.finish(ctx, cycle)

	o.logger.Info("merge cycle complete",
		slog.String("archive", ar.Folder),
		slog.Int("pages", res.TotalPages),
		slog.Int("documents", len(res.Merged)),
		slog.Int("read_failures", len(res.Failures)),
		slog.Int("move_failures", len(ar.Failures)),
	)

	return report, nil
}

// outputMoved reports whether the merged output made it into the archive.
func outputMoved(ar *archive.Result, output string) bool {
	for _, f := range ar.Failures {
		if f.Path == output {
			return false
		}
	}

	return true
}

// finish stamps, records, and counts a cycle that reached the merge step.
func (o *Orchestrator) finish(ctx context.Context, c *history.Cycle) {
	c.FinishedAt = o.nowFn()

	o.metrics.ObserveCycle(metrics.CycleStats{
		Outcome:      string(c.Outcome),
		Duration:     c.Duration(),
		Pages:        c.TotalPages,
		ReadFailures: c.ReadFailures,
		MoveFailures: c.MoveFailures,
	})

	if o.recorder == nil {
		return
	}

	if err := o.recorder.Record(ctx, c); err != nil {
		o.logger.Warn("failed to record cycle history", slog.String("error", err.Error()))
	}
}
