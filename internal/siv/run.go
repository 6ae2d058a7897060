package siv

import "time"

// Mode is the kind of run.
type Mode string

const (
	ModeInitialize Mode = "initialize"
	ModeVerify     Mode = "verify"
)

// Run status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunRequest holds the inputs shared by both entry points.
type RunRequest struct {
	Directory    string
	SnapshotPath string
	ReportPath   string
	Algorithm    Algorithm
}

// Run describes one initialize or verify invocation.
type Run struct {
	ID           string
	Mode         Mode
	Directory    string
	SnapshotPath string
	Algorithm    Algorithm
	StartedAt    time.Time
	FinishedAt   time.Time
	Files        int
	Directories  int
	Status       string
	Error        string

	// Result is set for successful verify runs only.
	Result *Result
}

// Elapsed is the wall time of the run.
func (r *Run) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Warnings returns the verify warning count, or 0.
func (r *Run) Warnings() int {
	if r.Result == nil {
		return 0
	}
	return r.Result.Warnings()
}
