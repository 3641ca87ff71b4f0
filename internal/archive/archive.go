// Package archive relocates a finished cycle's documents into a timestamped
// subfolder of the watched directory. Moves are best-effort per file: one
// failure is recorded and the remaining files are still moved.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FolderPrefix prefixes every archive folder name; the rest is the cycle
// timestamp shared with the merged output.
const FolderPrefix = "merged_"

const folderPermissions = 0o755

// ErrCreateFolder is returned when the archive folder cannot be created.
// Nothing has been moved when it is returned.
var ErrCreateFolder = errors.New("archive: creating archive folder failed")

// MoveFailure records one file that could not be relocated.
type MoveFailure struct {
	Path string
	Err  error
}

func (f MoveFailure) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(f.Path), f.Err)
}

// Result describes one archive pass.
type Result struct {
	Folder   string
	Moved    []string // destination paths
	Failures []MoveFailure
}

// Complete reports whether every file was moved.
func (r *Result) Complete() bool {
	return len(r.Failures) == 0
}

// FolderName returns the archive folder name for a cycle timestamp.
func FolderName(stamp string) string {
	return FolderPrefix + stamp
}

// Manager moves files into archive folders.
type Manager struct {
	logger *slog.Logger

	// renameFn is os.Rename in production; tests inject failures.
	renameFn func(oldpath, newpath string) error
}

// NewManager creates a Manager that moves files with os.Rename. Archive
// folders live inside the watched directory, so a rename never crosses a
// filesystem boundary.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:   logger,
		renameFn: os.Rename,
	}
}

// Archive creates dir/merged_<stamp> if absent and moves each of files
// into it, keeping base names. Duplicate entries in files are moved once.
func (m *Manager) Archive(dir, stamp string, files []string) (*Result, error) {
	folder := filepath.Join(dir, FolderName(stamp))

	if err := os.MkdirAll(folder, folderPermissions); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateFolder, folder, err)
	}

	m.logger.Info("archiving documents",
		slog.String("folder", folder),
		slog.Int("files", len(files)),
	)

	result := &Result{Folder: folder}
	seen := make(map[string]bool, len(files))

	for _, src := range files {
		if seen[src] {
			continue
		}

		seen[src] = true

		dst := filepath.Join(folder, filepath.Base(src))

		if err := m.renameFn(src, dst); err != nil {
			m.logger.Warn("failed to archive file",
				slog.String("path", src),
				slog.String("error", err.Error()),
			)

			result.Failures = append(result.Failures, MoveFailure{Path: src, Err: err})

			continue
		}

		m.logger.Debug("archived file", slog.String("path", src), slog.String("dest", dst))

		result.Moved = append(result.Moved, dst)
	}

	if result.Complete() {
		m.logger.Info("archive complete", slog.String("folder", folder), slog.Int("moved", len(result.Moved)))
	} else {
		m.logger.Warn("archive incomplete",
			slog.String("folder", folder),
			slog.Int("moved", len(result.Moved)),
			slog.Int("failed", len(result.Failures)),
		)
	}

	return result, nil
}
