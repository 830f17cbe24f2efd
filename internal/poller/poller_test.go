// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/config"
)

// scriptedClient replays a fixed sequence of status snapshots. The last
// entry repeats once the script is exhausted.
type scriptedClient struct {
	jobID    string
	script   []StatusReport
	errs     []error
	calls    int
	startErr error
}

func (c *scriptedClient) StartCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if c.startErr != nil {
		return "", c.startErr
	}
	return c.jobID, nil
}

func (c *scriptedClient) Status(ctx context.Context, jobID string) (StatusReport, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return StatusReport{}, c.errs[i]
	}
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	return c.script[i], nil
}

type recordingObserver struct {
	lines    []string
	progress []int
}

func (o *recordingObserver) LogLine(line string)     { o.lines = append(o.lines, line) }
func (o *recordingObserver) ProgressChanged(pct int) { o.progress = append(o.progress, pct) }

func testPollerConfig(attempts int) config.PollerConfig {
	return config.PollerConfig{Interval: time.Millisecond, MaxAttempts: attempts}
}

func TestWait_CompletesAndStreamsLogsOnce(t *testing.T) {
	client := &scriptedClient{
		jobID: "job-1",
		script: []StatusReport{
			{Status: "running", Progress: 10, Logs: []string{"a"}},
			{Status: "running", Progress: 45, Logs: []string{"a", "b", "c"}},
			{Status: "completed", Progress: 100, Logs: []string{"a", "b", "c", "d"}},
		},
	}
	obs := &recordingObserver{}
	p := New(client, testPollerConfig(10), zap.NewNop(), WithObserver(obs))

	report, err := p.Wait(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, 100, report.Progress)

	// Every line exactly once, in order, across snapshots.
	assert.Equal(t, []string{"a", "b", "c", "d"}, obs.lines)
	assert.Equal(t, []int{10, 45, 100}, obs.progress)
}

func TestWait_FailedJobIsTerminal(t *testing.T) {
	client := &scriptedClient{
		script: []StatusReport{
			{Status: "running", Progress: 35},
			{Status: "failed", Progress: 100, Error: "no products with buy affordances found"},
		},
	}
	p := New(client, testPollerConfig(10), zap.NewNop())

	report, err := p.Wait(context.Background(), "job-2")
	require.NoError(t, err)
	assert.True(t, report.Terminal())
	assert.False(t, report.Succeeded())
	assert.Equal(t, "no products with buy affordances found", report.Error)
}

func TestWait_BudgetExhaustion(t *testing.T) {
	client := &scriptedClient{
		script: []StatusReport{{Status: "running", Progress: 45}},
	}
	p := New(client, testPollerConfig(3), zap.NewNop())

	report, err := p.Wait(context.Background(), "job-3")
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 3, client.calls)
	// The last observed snapshot is still returned.
	assert.Equal(t, "running", report.Status)
}

func TestWait_FetchErrorEndsWatchImmediately(t *testing.T) {
	client := &scriptedClient{
		errs: []error{errors.New("connection reset")},
		script: []StatusReport{
			{Status: "running"},
		},
	}
	p := New(client, testPollerConfig(30), zap.NewNop())

	_, err := p.Wait(context.Background(), "job-4")
	// A broken fetch is a terminal local failure, not a verdict on the job
	// and not a consumed attempt.
	assert.ErrorIs(t, err, ErrPollFailed)
	assert.NotErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 1, client.calls)
}

func TestWait_ProgressClampedForObserver(t *testing.T) {
	client := &scriptedClient{
		script: []StatusReport{
			{Status: "running", Progress: -5},
			{Status: "completed", Progress: 150, Logs: []string{"done"}},
		},
	}
	obs := &recordingObserver{}
	p := New(client, testPollerConfig(10), zap.NewNop(), WithObserver(obs))

	report, err := p.Wait(context.Background(), "job-6")
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, []int{0, 100}, obs.progress)
}

func TestWait_UnknownJobAborts(t *testing.T) {
	client := &scriptedClient{
		errs: []error{ErrJobNotFound},
	}
	p := New(client, testPollerConfig(5), zap.NewNop())

	_, err := p.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Equal(t, 1, client.calls)
}

func TestWait_CancellationStopsPollingOnly(t *testing.T) {
	client := &scriptedClient{
		script: []StatusReport{{Status: "running"}},
	}
	p := New(client, config.PollerConfig{Interval: time.Hour, MaxAttempts: 10}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Wait(ctx, "job-5")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_StartFailure(t *testing.T) {
	client := &scriptedClient{startErr: errors.New("checkout rejected: checkout_url is required")}
	p := New(client, testPollerConfig(3), zap.NewNop())

	_, err := p.Run(context.Background(), CheckoutRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkout rejected")
}
