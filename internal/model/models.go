package model

import "time"

// Run is a recorded initialize or verify invocation.
type Run struct {
	ID           string // UUID
	Mode         string // "initialize" or "verify"
	Directory    string // Absolute path of the monitored tree
	SnapshotPath string
	Algorithm    string
	StartedAt    time.Time
	FinishedAt   time.Time
	Files        int
	Directories  int
	Warnings     int    // Total warnings of a verify run; 0 for initialize
	Status       string // "success" or "error"
	Error        string // Failure message when Status is "error"
}

// Elapsed is the wall time of the run.
func (r *Run) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Warning is one path flagged under a category by a verify run.
type Warning struct {
	RunID    string // Foreign key to Run
	Position int    // Order within the run's warning log
	Category string
	Path     string
}
