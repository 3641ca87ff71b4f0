// Package watch turns filesystem activity in one directory into debounced
// merge-and-archive cycles. The pipeline is:
//
//	Monitor (fsnotify) → Scheduler (debounce) → Orchestrator.RunCycle
//
// RunCycle snapshots the matching files, merges them with pdfmerge and, on
// success, relocates the snapshot plus the output with archive.
package watch

import "time"

// EventKind classifies a qualifying filesystem event.
type EventKind int

// Event kinds. Deletions and renames away never qualify.
const (
	EventCreated EventKind = iota
	EventModified
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	default:
		return "unknown"
	}
}

// FileEvent is one qualifying arrival or modification of a matching file.
type FileEvent struct {
	Path string
	Kind EventKind
	Time time.Time
}
