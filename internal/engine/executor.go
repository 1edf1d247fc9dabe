package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/roach88/rollcall/internal/directory"
)

const (
	// DefaultPace is the minimum spacing between remote mutation calls.
	DefaultPace = time.Second

	// DefaultMaxAttempts bounds attempts per task, first call included.
	DefaultMaxAttempts = 5

	// DefaultRetryAfter is used when a throttled response carries no hint.
	DefaultRetryAfter = 5 * time.Second
)

// Mutator performs the remote mutations. *directory.Client implements it.
type Mutator interface {
	DeleteUser(ctx context.Context, token, id string) error
	CreateUser(ctx context.Context, token string, user directory.NewUser) (*directory.Record, error)
}

// Executor runs mutation tasks one at a time with proactive pacing and
// reactive retry on throttling.
//
// Thread-safety: an Executor serves one batch at a time. Tasks are never
// executed concurrently.
type Executor struct {
	mutator           Mutator
	clock             Clock
	limiter           *rate.Limiter
	pace              time.Duration
	maxAttempts       int
	defaultRetryAfter time.Duration
	logger            *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithClock sets the clock used for pacing and retry waits.
func WithClock(c Clock) ExecutorOption {
	return func(e *Executor) {
		e.clock = c
	}
}

// WithPace sets the minimum spacing between mutation calls.
// Zero or negative disables pacing.
func WithPace(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.pace = d
	}
}

// WithMaxAttempts sets the per-task attempt budget. Values below one
// mean a single attempt.
func WithMaxAttempts(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxAttempts = n
	}
}

// WithDefaultRetryAfter sets the wait used when the service sends no
// Retry-After hint.
func WithDefaultRetryAfter(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.defaultRetryAfter = d
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor creates an Executor for the given mutator.
func NewExecutor(m Mutator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		mutator:           m,
		clock:             SystemClock{},
		pace:              DefaultPace,
		maxAttempts:       DefaultMaxAttempts,
		defaultRetryAfter: DefaultRetryAfter,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	// backoff.WithMaxTries treats zero as unlimited.
	if e.maxAttempts < 1 {
		e.maxAttempts = 1
	}

	limit := rate.Inf
	if e.pace > 0 {
		limit = rate.Every(e.pace)
	}
	e.limiter = rate.NewLimiter(limit, 1)

	return e
}

// Execute drives one task to a terminal outcome.
//
// backoff.Retry owns the attempt loop. A throttled call waits for the
// service's retry-after hint (or the default) and is tried again until
// maxAttempts calls were made; there is no wait after the last attempt.
// Any other failure is permanent at once. Every call, retries included,
// passes through the pacing limiter.
func (e *Executor) Execute(ctx context.Context, token string, task Task) Outcome {
	key := task.Key()
	out := Outcome{Kind: task.Kind, RecordID: task.RecordID, Email: task.Email}
	wait := newClockBackOff(ctx, e.clock, e.defaultRetryAfter)

	attempts := 0
	created, err := backoff.Retry(ctx, func() (*directory.Record, error) {
		if err := e.paceCall(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		attempts++
		rec, err := e.call(ctx, token, task)
		if err == nil {
			return rec, nil
		}
		if !directory.IsThrottled(err) {
			return nil, backoff.Permanent(err)
		}
		wait.observe(err)
		return nil, err
	},
		backoff.WithBackOff(wait),
		backoff.WithMaxTries(uint(e.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(error, time.Duration) {
			e.logger.Warn("throttled",
				"kind", task.Kind,
				"record_id", key,
				"attempt", attempts,
				"retry_after", wait.last)
		}),
	)

	switch {
	case err == nil:
		out.Status = StatusSucceeded
		out.Attempts = attempts
		out.Created = created
		e.logger.Debug("task succeeded",
			"kind", task.Kind,
			"record_id", key,
			"attempt", attempts)
		return out

	case wait.sleepErr != nil:
		return e.failed(out, key, attempts, wait.sleepErr)

	case directory.IsThrottled(err):
		exceeded := &AttemptsExceededError{RecordKey: key, Attempts: attempts, Limit: e.maxAttempts}
		out.Status = StatusAbandoned
		out.Attempts = attempts
		out.Reason = exceeded.Error()
		out.Err = directory.NewThrottleError(key, errors.Join(exceeded, err))
		e.logger.Warn("task abandoned",
			"kind", task.Kind,
			"record_id", key,
			"attempts", attempts)
		return out

	default:
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		return e.failed(out, key, attempts, err)
	}
}

// RunBatch executes tasks in order. observe, when non-nil, sees each
// outcome as soon as it is known.
//
// Cancelling ctx stops the batch between tasks, never mid-task: the task in
// flight finishes (including its retries) and interrupted is reported true.
// The returned outcomes cover exactly the tasks that were attempted.
func (e *Executor) RunBatch(ctx context.Context, token string, tasks []Task, observe func(Outcome)) (outcomes []Outcome, interrupted bool) {
	taskCtx := context.WithoutCancel(ctx)
	outcomes = make([]Outcome, 0, len(tasks))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("batch interrupted",
				"completed", i,
				"remaining", len(tasks)-i,
				"error", err)
			return outcomes, true
		}

		o := e.Execute(taskCtx, token, task)
		outcomes = append(outcomes, o)
		if observe != nil {
			observe(o)
		}
	}
	return outcomes, false
}

func (e *Executor) call(ctx context.Context, token string, task Task) (*directory.Record, error) {
	switch task.Kind {
	case KindDelete:
		return nil, e.mutator.DeleteUser(ctx, token, task.RecordID)
	case KindCreate:
		return e.mutator.CreateUser(ctx, token, task.User)
	default:
		return nil, fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// paceCall waits until the limiter admits the next call.
func (e *Executor) paceCall(ctx context.Context) error {
	now := e.clock.Now()
	r := e.limiter.ReserveN(now, 1)
	d := r.DelayFrom(now)
	if d <= 0 {
		return nil
	}
	if err := e.clock.Sleep(ctx, d); err != nil {
		r.CancelAt(e.clock.Now())
		return err
	}
	return nil
}

func (e *Executor) failed(out Outcome, key string, attempts int, err error) Outcome {
	out.Status = StatusFailed
	out.Attempts = attempts
	out.Reason = err.Error()
	if out.Kind == KindCreate && directory.IsValidationError(err) {
		out.Err = directory.NewValidationError(key, err)
	} else {
		out.Err = directory.NewMutationError(key, err)
	}
	e.logger.Warn("task failed",
		"kind", out.Kind,
		"record_id", key,
		"attempt", attempts,
		"error", err)
	return out
}
