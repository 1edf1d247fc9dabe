package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/rollcall/internal/engine"
)

// StatusRunning marks a run that has begun but not finished. A run left in
// this state was killed before it could settle.
const StatusRunning = "running"

// Fixed-width so text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// BeginRun inserts the run row. Idempotent per run id.
func (s *Store) BeginRun(ctx context.Context, runID, operation string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, operation, status, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, operation, StatusRunning, formatTime(startedAt))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// RecordOutcome appends one task outcome to a run.
func (s *Store) RecordOutcome(ctx context.Context, runID string, seq int, o engine.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, seq, kind, record_id, email, status, attempts, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, seq, string(o.Kind), o.RecordID, o.Email, string(o.Status), o.Attempts, o.Reason)
	if err != nil {
		return fmt.Errorf("insert outcome %s/%d: %w", runID, seq, err)
	}
	return nil
}

// FinishRun writes the report's terminal state and counters. A run whose
// BeginRun never landed is inserted whole.
func (s *Store) FinishRun(ctx context.Context, r *engine.Report) error {
	preserved := ""
	if r.Preserved != nil {
		preserved = r.Preserved.ID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, operation, status, abort_reason, error,
			roster_size, pages, matched, attempted, succeeded, failed, abandoned,
			preserved_id, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status       = excluded.status,
			abort_reason = excluded.abort_reason,
			error        = excluded.error,
			roster_size  = excluded.roster_size,
			pages        = excluded.pages,
			matched      = excluded.matched,
			attempted    = excluded.attempted,
			succeeded    = excluded.succeeded,
			failed       = excluded.failed,
			abandoned    = excluded.abandoned,
			preserved_id = excluded.preserved_id,
			finished_at  = excluded.finished_at
	`,
		r.RunID, r.Operation, string(r.Status), string(r.AbortReason), r.Error,
		r.RosterSize, r.Pages, r.Matched, r.Attempted, r.Succeeded, r.Failed, r.Abandoned,
		preserved, formatTime(r.StartedAt), formatTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.RunID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
