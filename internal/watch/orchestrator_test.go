package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pdfwatch/internal/archive"
	"github.com/tonimelisma/pdfwatch/internal/history"
	"github.com/tonimelisma/pdfwatch/internal/metrics"
	"github.com/tonimelisma/pdfwatch/internal/pdfmerge"
	"github.com/tonimelisma/pdfwatch/testutil"
)

// fakeRecorder captures recorded cycles.
type fakeRecorder struct {
	mu     sync.Mutex
	cycles []history.Cycle
}

func (r *fakeRecorder) Record(_ context.Context, c *history.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cycles = append(r.cycles, *c)

	return nil
}

func (r *fakeRecorder) snapshot() []history.Cycle {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]history.Cycle(nil), r.cycles...)
}

// countingArchiver wraps a real manager and counts calls.
type countingArchiver struct {
	inner Archiver
	mu    sync.Mutex
	calls int
}

func (a *countingArchiver) Archive(dir, stamp string, files []string) (*archive.Result, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	return a.inner.Archive(dir, stamp, files)
}

// failingMerger always fails to write.
type failingMerger struct{}

func (failingMerger) Merge(_ context.Context, _ string, paths []string) (*pdfmerge.Result, error) {
	return nil, fmt.Errorf("%w: disk full", pdfmerge.ErrWrite)
}

func newTestOrchestrator(t *testing.T, dir string, mutate func(*Config)) (*Orchestrator, *fakeRecorder) {
	t.Helper()

	rec := &fakeRecorder{}
	cfg := &Config{
		Dir:      dir,
		Debounce: 150 * time.Millisecond,
		Recorder: rec,
		Metrics:  metrics.New(),
		Logger:   testLogger(t),
	}

	if mutate != nil {
		mutate(cfg)
	}

	o, err := New(cfg)
	require.NoError(t, err)

	return o, rec
}

// matchingFiles lists .pdf files directly in dir.
func matchingFiles(t *testing.T, dir string) []string {
	t.Helper()

	files, err := pdfmerge.ListCandidates(dir, ".pdf")
	require.NoError(t, err)

	return files
}

func TestRunCycle_MergesAndArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WritePDF(t, dir, "a.pdf", 2)
	testutil.WritePDF(t, dir, "b.pdf", 3)
	testutil.WritePDF(t, dir, "c.pdf", 1)

	o, rec := newTestOrchestrator(t, dir, nil)

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Merge)
	require.NotNil(t, report.Archive)

	assert.Equal(t, 6, report.Merge.TotalPages)
	assert.True(t, report.Archive.Complete())
	assert.Empty(t, matchingFiles(t, dir), "watched directory emptied")

	archived := matchingFiles(t, report.Archive.Folder)
	assert.Len(t, archived, 4, "sources plus output")

	stamp := report.Merge.Stamp()
	assert.Equal(t, filepath.Join(dir, archive.FolderName(stamp)), report.Archive.Folder)

	out := filepath.Join(report.Archive.Folder, "merged_output_"+stamp+".pdf")
	pages, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 6, pages)

	cycles := rec.snapshot()
	require.Len(t, cycles, 1)
	assert.Equal(t, history.OutcomeMerged, cycles[0].Outcome)
	assert.Equal(t, 3, cycles[0].Inputs)
	assert.Equal(t, 6, cycles[0].TotalPages)
	assert.Equal(t, out, cycles[0].OutputPath)
	assert.Equal(t, report.Archive.Folder, cycles[0].ArchiveDir)
	assert.False(t, cycles[0].FinishedAt.Before(cycles[0].StartedAt))
}

func TestRunCycle_CorruptFileStillArchived(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WritePDF(t, dir, "a.pdf", 2)
	testutil.WritePDF(t, dir, "b.pdf", 3)
	testutil.WriteCorruptPDF(t, dir, "c.pdf")

	o, rec := newTestOrchestrator(t, dir, nil)

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Archive)

	assert.Equal(t, 5, report.Merge.TotalPages)
	assert.Len(t, report.Merge.Failures, 1)
	assert.FileExists(t, filepath.Join(report.Archive.Folder, "c.pdf"))
	assert.Len(t, matchingFiles(t, report.Archive.Folder), 4)
	assert.Empty(t, matchingFiles(t, dir))

	cycles := rec.snapshot()
	require.Len(t, cycles, 1)
	assert.Equal(t, 1, cycles[0].ReadFailures)
}

func TestRunCycle_SingleFileLeavesDirectoryUntouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	only := testutil.WritePDF(t, dir, "only.pdf", 2)

	arch := &countingArchiver{inner: archive.NewManager(testLogger(t))}
	o, rec := newTestOrchestrator(t, dir, func(c *Config) { c.Archiver = arch })

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Merge)
	assert.True(t, report.Merge.Skipped())
	assert.Nil(t, report.Archive)
	assert.Zero(t, arch.calls)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.FileExists(t, only)

	cycles := rec.snapshot()
	require.Len(t, cycles, 1)
	assert.Equal(t, history.OutcomeSkipped, cycles[0].Outcome)
}

func TestRunCycle_EmptyDirectoryIsNoop(t *testing.T) {
	t.Parallel()

	o, rec := newTestOrchestrator(t, t.TempDir(), nil)

	report, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Candidates)
	assert.Nil(t, report.Merge)
	assert.Empty(t, rec.snapshot(), "nothing recorded when nothing was present")
}

func TestRunCycle_WriteFailureKeepsSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", 1)
	b := testutil.WritePDF(t, dir, "b.pdf", 1)

	arch := &countingArchiver{inner: archive.NewManager(testLogger(t))}
	o, rec := newTestOrchestrator(t, dir, func(c *Config) {
		c.Merger = failingMerger{}
		c.Archiver = arch
	})

	_, err := o.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pdfmerge.ErrWrite))
	assert.Zero(t, arch.calls, "archive step skipped")
	assert.FileExists(t, a)
	assert.FileExists(t, b)

	cycles := rec.snapshot()
	require.Len(t, cycles, 1)
	assert.Equal(t, history.OutcomeWriteFailed, cycles[0].Outcome)
	assert.Contains(t, cycles[0].Error, "disk full")
}

func TestRunCycle_MissingDirectory(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t, filepath.Join(t.TempDir(), "gone"), nil)

	_, err := o.RunCycle(context.Background())
	assert.True(t, errors.Is(err, ErrWatchDirUnavailable))
}

func TestNew_RequiresDir(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	o, err := New(&Config{Dir: "."})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(o.Dir()))
	assert.Equal(t, ".pdf", o.ext)
	assert.Equal(t, defaultQueueSize, o.queueSize)
	assert.Equal(t, DefaultDebounce, o.Scheduler().Delay())
}

func TestRun_BurstProducesOneArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	o, rec := newTestOrchestrator(t, dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)

	go func() { errCh <- o.Run(ctx) }()

	// Let the watcher register before files arrive.
	time.Sleep(100 * time.Millisecond)

	// Fixtures are written elsewhere and moved in, like a scanner dropping
	// finished files.
	staging := t.TempDir()
	for name, pages := range map[string]int{"a.pdf": 2, "b.pdf": 3, "c.pdf": 1} {
		src := testutil.WritePDF(t, staging, name, pages)
		require.NoError(t, os.Rename(src, filepath.Join(dir, name)))
	}

	require.Eventually(t, func() bool {
		for _, c := range rec.snapshot() {
			if c.Outcome == history.OutcomeMerged {
				return true
			}
		}

		return false
	}, 10*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return o.Scheduler().State() == StateIdle
	}, 5*time.Second, 20*time.Millisecond)

	cycles := rec.snapshot()
	require.Len(t, cycles, 1, "one burst, one cycle")
	assert.Equal(t, 6, cycles[0].TotalPages)
	assert.Empty(t, matchingFiles(t, dir))
	assert.Len(t, matchingFiles(t, cycles[0].ArchiveDir), 4)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_DirectoryLossEndsSession(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.Mkdir(dir, 0o755))

	o, _ := newTestOrchestrator(t, dir, nil)
	o.monitor.dirCheckEvery = 50 * time.Millisecond

	errCh := make(chan error, 1)

	go func() { errCh <- o.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.RemoveAll(dir))

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrWatchDirUnavailable))
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after directory removal")
	}
}
