package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/rollcall/internal/directory"
)

// clockBackOff is the backoff.BackOff handed to backoff.Retry. It picks the
// wait after a throttled attempt and spends it on the engine Clock, then
// tells Retry to go again at once. Retry's own timer therefore never waits
// and fake clocks see every retry wait.
//
// The wait is the service's Retry-After hint when the last throttled
// response carried one (zero included) and the fallback policy otherwise.
type clockBackOff struct {
	ctx      context.Context
	clock    Clock
	fallback backoff.BackOff

	hint     time.Duration
	hinted   bool
	last     time.Duration // wait spent by the latest NextBackOff
	sleepErr error         // set when ctx ended a wait
}

func newClockBackOff(ctx context.Context, clock Clock, defaultWait time.Duration) *clockBackOff {
	return &clockBackOff{
		ctx:      ctx,
		clock:    clock,
		fallback: backoff.NewConstantBackOff(defaultWait),
	}
}

// observe records the Retry-After hint of a throttled response.
func (b *clockBackOff) observe(err error) {
	b.hint, b.hinted = directory.RetryAfterHint(err)
}

// Reset implements backoff.BackOff.
func (b *clockBackOff) Reset() {
	b.fallback.Reset()
	b.hinted = false
}

// NextBackOff implements backoff.BackOff. It blocks on the clock for the
// chosen wait and returns zero, or backoff.Stop when ctx ended the wait.
func (b *clockBackOff) NextBackOff() time.Duration {
	wait := b.fallback.NextBackOff()
	if b.hinted {
		wait = b.hint
	}
	b.hinted = false
	if wait == backoff.Stop {
		return backoff.Stop
	}

	b.last = wait
	if wait > 0 {
		if err := b.clock.Sleep(b.ctx, wait); err != nil {
			b.sleepErr = err
			return backoff.Stop
		}
	}
	return 0
}
