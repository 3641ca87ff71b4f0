package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/pdfwatch/internal/pdfmerge"
)

// ErrWatchDirUnavailable is returned by Monitor.Watch when the watched
// directory disappears or stops being a readable directory. It ends the
// watch session.
var ErrWatchDirUnavailable = errors.New("watch: watched directory unavailable")

// Monitor backoff and health-check timing.
const (
	watchErrInitBackoff  = 250 * time.Millisecond
	watchErrMaxBackoff   = 2 * time.Second
	watchErrBackoffMult  = 2
	defaultDirCheckEvery = 5 * time.Second
)

// FsWatcher is the subset of *fsnotify.Watcher the monitor needs. Tests
// substitute a fake that delivers synthetic events.
type FsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// fsnotifyWatcher adapts *fsnotify.Watcher, whose channels are struct
// fields, to FsWatcher.
type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFsnotifyWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &fsnotifyWatcher{w: w}, nil
}

func (f *fsnotifyWatcher) Add(name string) error         { return f.w.Add(name) }
func (f *fsnotifyWatcher) Close() error                  { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }

// Monitor emits FileEvents for files directly inside one directory whose
// names match an extension. It does not recurse: fsnotify watches are
// never added for subdirectories.
type Monitor struct {
	dir    string
	ext    string
	logger *slog.Logger

	newWatcher    func() (FsWatcher, error)
	sleepFn       func(ctx context.Context, d time.Duration) error
	nowFn         func() time.Time
	dirCheckEvery time.Duration
}

// NewMonitor creates a Monitor for dir, matching names ending in ext
// (case-insensitive).
func NewMonitor(dir, ext string, logger *slog.Logger) *Monitor {
	return &Monitor{
		dir:           filepath.Clean(dir),
		ext:           ext,
		logger:        logger,
		newWatcher:    newFsnotifyWatcher,
		sleepFn:       timeSleep,
		nowFn:         time.Now,
		dirCheckEvery: defaultDirCheckEvery,
	}
}

// Watch blocks, sending qualifying events to events until ctx is canceled
// (returns nil) or the directory becomes unavailable (returns an error
// wrapping ErrWatchDirUnavailable). Sends block when events is full, so
// the channel capacity bounds the queue between monitor and scheduler.
// Watch may be called again after it returns.
func (m *Monitor) Watch(ctx context.Context, events chan<- FileEvent) error {
	if err := m.checkDir(); err != nil {
		return err
	}

	watcher, err := m.newWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.dir); err != nil {
		return fmt.Errorf("%w: adding watch on %s: %w", ErrWatchDirUnavailable, m.dir, err)
	}

	m.logger.Info("monitoring directory",
		slog.String("dir", m.dir),
		slog.String("extension", m.ext),
	)

	return m.watchLoop(ctx, watcher, events)
}

// watchLoop is the select loop for Watch: fsnotify events, watcher errors,
// periodic directory health checks, and cancellation.
func (m *Monitor) watchLoop(ctx context.Context, watcher FsWatcher, events chan<- FileEvent) error {
	dirCheck := time.NewTicker(m.dirCheckEvery)
	defer dirCheck.Stop()

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case fsEvent, ok := <-watcher.Events():
			if !ok {
				return nil
			}

			if m.isSelfRemoval(fsEvent) {
				m.logger.Error("watched directory removed or renamed",
					slog.String("dir", m.dir), slog.String("op", fsEvent.Op.String()))

				return fmt.Errorf("%w: %s (%s)", ErrWatchDirUnavailable, m.dir, fsEvent.Op)
			}

			m.handleFsEvent(ctx, fsEvent, events)

			errBackoff = watchErrInitBackoff

		case watchErr, ok := <-watcher.Errors():
			if !ok {
				return nil
			}

			m.logger.Warn("filesystem watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			if sleepErr := m.sleepFn(ctx, errBackoff); sleepErr != nil {
				return nil
			}

			errBackoff *= watchErrBackoffMult
			if errBackoff > watchErrMaxBackoff {
				errBackoff = watchErrMaxBackoff
			}

		case <-dirCheck.C:
			if err := m.checkDir(); err != nil {
				m.logger.Error("watched directory no longer accessible",
					slog.String("dir", m.dir), slog.String("error", err.Error()))

				return err
			}
		}
	}
}

// handleFsEvent filters one fsnotify event and forwards it if it concerns
// a matching regular file.
func (m *Monitor) handleFsEvent(ctx context.Context, fsEvent fsnotify.Event, events chan<- FileEvent) {
	var kind EventKind

	switch {
	case fsEvent.Has(fsnotify.Create):
		kind = EventCreated
	case fsEvent.Has(fsnotify.Write):
		kind = EventModified
	default:
		// Chmod, Remove, Rename: nothing new to merge.
		return
	}

	// Non-recursive: only direct children of the watched directory.
	if filepath.Dir(filepath.Clean(fsEvent.Name)) != m.dir {
		return
	}

	name := norm.NFC.String(filepath.Base(fsEvent.Name))
	if !pdfmerge.HasExtension(name, m.ext) {
		m.logger.Debug("ignoring non-matching file", slog.String("name", name))
		return
	}

	if kind == EventCreated {
		info, err := os.Stat(fsEvent.Name)
		if err != nil {
			// Gone again before we looked (e.g. moved by an archive pass).
			m.logger.Debug("stat failed for created path",
				slog.String("path", fsEvent.Name), slog.String("error", err.Error()))

			return
		}

		if info.IsDir() {
			m.logger.Debug("ignoring directory creation", slog.String("path", fsEvent.Name))
			return
		}
	}

	ev := FileEvent{
		Path: fsEvent.Name,
		Kind: kind,
		Time: m.nowFn(),
	}

	m.logger.Debug("qualifying event",
		slog.String("path", ev.Path),
		slog.String("kind", ev.Kind.String()),
	)

	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// isSelfRemoval reports whether fsEvent says the watched directory itself
// was removed or renamed away.
func (m *Monitor) isSelfRemoval(fsEvent fsnotify.Event) bool {
	if filepath.Clean(fsEvent.Name) != m.dir {
		return false
	}

	return fsEvent.Has(fsnotify.Remove) || fsEvent.Has(fsnotify.Rename)
}

// checkDir verifies the watched path is still a readable directory.
func (m *Monitor) checkDir() error {
	info, err := os.Stat(m.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatchDirUnavailable, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrWatchDirUnavailable, m.dir)
	}

	if _, err := os.ReadDir(m.dir); err != nil {
		return fmt.Errorf("%w: %w", ErrWatchDirUnavailable, err)
	}

	return nil
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
