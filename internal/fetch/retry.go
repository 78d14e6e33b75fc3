package fetch

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

// RetryPolicy is a bounded retry with a fixed wait between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Wait        time.Duration
}

// Sleep blocks for the policy's wait or until ctx is done.
func (p RetryPolicy) Sleep(ctx context.Context) error {
	return Sleep(ctx, p.Wait)
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
// A non-positive d only checks ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
