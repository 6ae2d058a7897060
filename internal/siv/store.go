package siv

import "context"

// SnapshotStore persists snapshots and reads them back keyed by path.
type SnapshotStore interface {
	// Write replaces the snapshot file at path.
	Write(s *Snapshot, path string) error

	// Read loads the snapshot at path. Returns an error matching
	// ErrNoBaseline when no file exists.
	Read(path string) (*KeyedSnapshot, error)
}

// Reporter renders run summaries into the human-readable report file.
type Reporter interface {
	// Reset removes any previous report at path.
	Reset(path string) error

	// Append adds the summary of a finished run to the report at path.
	Append(path string, run *Run) error
}

// RunHistory records every run for later inspection.
type RunHistory interface {
	RecordRun(run *Run) error
}

// Archiver keeps an off-tree copy of a freshly written snapshot.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, runID string, snapshotPath string) error
}
