package engine

import (
	"context"
	"time"
)

// Clock is the engine's only source of wall time and waiting.
//
// Every wait (retry-after backoff, pacing delay) goes through Sleep so that
// waits suspend only the current operation and tests can substitute a fake
// clock that never blocks.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep waits for d or until ctx is done, whichever comes first.
// Returns ctx.Err() if the context ended the wait.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
