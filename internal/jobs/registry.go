// internal/jobs/registry.go
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry is a concurrency-safe in-memory job table. Progress and logs are
// monotonic while a job runs; once a job reaches a terminal status every
// further mutation is ignored.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*Job),
		logger: logger.Named("jobs"),
	}
}

// Create registers a new pending job and returns a snapshot of it.
func (r *Registry) Create() Job {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.logger.Info("Job created.", zap.String("job_id", job.ID))
	return snapshot(job)
}

// Get returns a snapshot of the job, if it exists.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return snapshot(job), true
}

// MarkRunning moves a pending job to running.
func (r *Registry) MarkRunning(id string) {
	r.mutate(id, func(job *Job) {
		job.Status = StatusRunning
	})
}

// AppendLog appends one log line to the job.
func (r *Registry) AppendLog(id, line string) {
	r.mutate(id, func(job *Job) {
		job.Logs = append(job.Logs, line)
	})
}

// SetProgress updates the job's completion percentage, clamped to [0, 100].
// Progress never moves backwards.
func (r *Registry) SetProgress(id string, pct int) {
	r.mutate(id, func(job *Job) {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		if pct > job.Progress {
			job.Progress = pct
		}
	})
}

// Complete marks the job successfully finished at full progress.
func (r *Registry) Complete(id string) {
	r.mutate(id, func(job *Job) {
		job.Status = StatusCompleted
		job.Progress = 100
	})
}

// Fail marks the job failed, recording the reason.
func (r *Registry) Fail(id, reason string) {
	if reason == "" {
		reason = "checkout failed"
	}
	r.mutate(id, func(job *Job) {
		job.Status = StatusFailed
		job.Progress = 100
		job.Error = reason
	})
}

// mutate applies fn under the write lock. Unknown ids and terminal jobs are
// left untouched.
func (r *Registry) mutate(id string, fn func(job *Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now()
}

func snapshot(job *Job) Job {
	out := *job
	out.Logs = append([]string(nil), job.Logs...)
	return out
}
