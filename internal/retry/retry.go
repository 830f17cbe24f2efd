// internal/retry/retry.go

// Package retry provides a bounded fixed-interval polling primitive.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrBudgetExhausted is returned by Do when every attempt ran without the
// probe reporting completion.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

// Probe is one polling attempt. It returns done=true to stop successfully,
// or a non-nil error to abort immediately. The attempt counter is 1-based.
type Probe func(ctx context.Context, attempt int) (done bool, err error)

// Do invokes fn up to maxAttempts times, waiting interval between attempts.
// The first attempt runs immediately. Context cancellation aborts the wait
// and returns the context's error. When the budget runs out without fn
// reporting done, Do returns ErrBudgetExhausted.
func Do(ctx context.Context, interval time.Duration, maxAttempts int, fn Probe) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrBudgetExhausted
}
