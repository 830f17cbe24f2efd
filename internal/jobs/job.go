// internal/jobs/job.go

// Package jobs tracks asynchronous checkout runs: an in-memory registry of
// job records, a runner that executes checkouts in the background, and an
// optional database archive of finished runs.
package jobs

import "time"

// Status is a job's lifecycle phase.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final. Terminal jobs are immutable.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the externally visible record of one checkout run. Values handed
// out by the registry are snapshots; mutating them has no effect on the
// tracked job.
type Job struct {
	ID        string
	Status    Status
	Progress  int
	Logs      []string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
