// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/config"
	"github.com/cartpilot-io/cartpilot/internal/retry"
)

// ErrPollTimeout is returned by Wait when the polling budget runs out
// before the job reaches a terminal state. The job itself keeps running on
// the service; giving up locally never cancels it.
var ErrPollTimeout = errors.New("polling budget exhausted before job completion")

// ErrPollFailed marks a status fetch that did not produce a job snapshot.
// It ends the watch immediately and says nothing about the job itself,
// which keeps running on the service.
var ErrPollFailed = errors.New("status poll failed")

// Observer receives live updates while a job is polled. Log lines arrive
// exactly once each, in job order.
type Observer interface {
	LogLine(line string)
	ProgressChanged(pct int)
}

// Poller watches jobs to completion on a fixed polling cadence.
type Poller struct {
	client      Client
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
	observer    Observer
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithObserver streams job updates to the given observer.
func WithObserver(obs Observer) PollerOption {
	return func(p *Poller) { p.observer = obs }
}

// New creates a Poller using the configured interval and attempt budget.
func New(client Client, cfg config.PollerConfig, logger *zap.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		client:      client,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.Named("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a checkout and waits for it to finish.
func (p *Poller) Run(ctx context.Context, req CheckoutRequest) (StatusReport, error) {
	jobID, err := p.client.StartCheckout(ctx, req)
	if err != nil {
		return StatusReport{}, err
	}
	p.logger.Info("Checkout job started.", zap.String("job_id", jobID))
	return p.Wait(ctx, jobID)
}

// Wait polls the job until it reaches a terminal state. The returned report
// is the last snapshot observed; a failed job is a successful Wait — the
// caller inspects the report. Any fetch failure is a terminal local
// failure: the watch ends on the spot and the error is ErrPollFailed (or
// ErrJobNotFound for an unknown id), never a verdict on the job.
func (p *Poller) Wait(ctx context.Context, jobID string) (StatusReport, error) {
	var last StatusReport
	rendered := 0
	lastProgress := -1

	err := retry.Do(ctx, p.interval, p.maxAttempts, func(ctx context.Context, attempt int) (bool, error) {
		report, err := p.client.Status(ctx, jobID)
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				return false, err
			}
			p.logger.Warn("Status poll failed.", zap.Int("attempt", attempt), zap.Error(err))
			return false, fmt.Errorf("%w: %v", ErrPollFailed, err)
		}
		last = report

		// Only lines beyond the high-water mark are new.
		for ; rendered < len(report.Logs); rendered++ {
			if p.observer != nil {
				p.observer.LogLine(report.Logs[rendered])
			}
		}
		// The snapshot is an external contract; clamp before rendering.
		pct := report.Progress
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		if p.observer != nil && pct != lastProgress {
			p.observer.ProgressChanged(pct)
			lastProgress = pct
		}

		return report.Terminal(), nil
	})

	if errors.Is(err, retry.ErrBudgetExhausted) {
		return last, ErrPollTimeout
	}
	if err != nil {
		return last, err
	}
	return last, nil
}
