// internal/jobs/runner.go
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/agent"
	"github.com/cartpilot-io/cartpilot/internal/browser"
	"github.com/cartpilot-io/cartpilot/internal/config"
)

// Executor performs one checkout run, streaming log lines and progress
// updates through the callbacks as it goes.
type Executor func(ctx context.Context, opts agent.RunOptions, onLog func(line string), onProgress func(pct int)) *agent.RunReport

// NewAgentExecutor builds the production Executor: each run gets its own
// agent wired to the shared page factory, with its sinks bound to the
// callbacks for that run.
func NewAgentExecutor(sessions browser.PageFactory, cfg config.BrowserConfig, logger *zap.Logger) Executor {
	return func(ctx context.Context, opts agent.RunOptions, onLog func(string), onProgress func(int)) *agent.RunReport {
		a := agent.New(sessions, cfg, logger,
			agent.WithLogSink(onLog),
			agent.WithStateSink(func(s agent.State) { onProgress(s.Progress()) }),
		)
		return a.RunFullCheckout(ctx, opts)
	}
}

// Runner launches checkout jobs in the background and records their outcome
// in the registry. An optional archive persists finished runs.
type Runner struct {
	registry *Registry
	exec     Executor
	logger   *zap.Logger
	archive  *Store
	wg       sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithArchive persists every finished run through the given store.
func WithArchive(store *Store) RunnerOption {
	return func(r *Runner) { r.archive = store }
}

// NewRunner creates a Runner executing jobs via exec.
func NewRunner(registry *Registry, exec Executor, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		exec:     exec,
		logger:   logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers a new job and executes the checkout on a background
// goroutine. The returned id is immediately pollable. The supplied context
// bounds the run's lifetime; callers that merely stop watching a job do not
// cancel it.
func (r *Runner) Start(ctx context.Context, opts agent.RunOptions) string {
	job := r.registry.Create()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, job.ID, opts)
	}()

	return job.ID
}

func (r *Runner) run(ctx context.Context, id string, opts agent.RunOptions) {
	r.registry.MarkRunning(id)

	report := r.exec(ctx, opts,
		func(line string) { r.registry.AppendLog(id, line) },
		func(pct int) { r.registry.SetProgress(id, pct) },
	)

	if report.Success {
		r.registry.Complete(id)
	} else {
		r.registry.Fail(id, report.Error)
	}
	r.logger.Info("Job finished.",
		zap.String("job_id", id),
		zap.Bool("success", report.Success),
		zap.String("final_state", report.FinalState.String()),
	)

	if r.archive == nil {
		return
	}
	job, ok := r.registry.Get(id)
	if !ok {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.archive.SaveRun(archiveCtx, job, report); err != nil {
		r.logger.Warn("Could not archive finished run.", zap.String("job_id", id), zap.Error(err))
	}
}

// Wait blocks until every started job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
