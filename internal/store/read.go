package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one journaled run.
type Run struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"`
	Status      string     `json:"status"`
	AbortReason string     `json:"abort_reason,omitempty"`
	Error       string     `json:"error,omitempty"`
	RosterSize  int        `json:"roster_size"`
	Pages       int        `json:"pages"`
	Matched     int        `json:"matched"`
	Attempted   int        `json:"attempted"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Abandoned   int        `json:"abandoned"`
	PreservedID string     `json:"preserved_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// OutcomeRecord is one journaled task outcome.
type OutcomeRecord struct {
	RunID    string `json:"run_id"`
	Seq      int    `json:"seq"`
	Kind     string `json:"kind"`
	RecordID string `json:"record_id,omitempty"`
	Email    string `json:"email"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason,omitempty"`
}

// ListRuns returns the most recent runs, newest first.
// limit <= 0 returns every run.
//
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, operation, status, abort_reason, error,
		       roster_size, pages, matched, attempted, succeeded, failed, abandoned,
		       preserved_id, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run. Returns sql.ErrNoRows if it does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, operation, status, abort_reason, error,
		       roster_size, pages, matched, attempted, succeeded, failed, abandoned,
		       preserved_id, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, runID)
	return scanRun(row)
}

// RunOutcomes returns a run's outcomes in execution order.
func (s *Store) RunOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, record_id, email, status, attempts, reason
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []OutcomeRecord{}
	for rows.Next() {
		var o OutcomeRecord
		if err := rows.Scan(&o.RunID, &o.Seq, &o.Kind, &o.RecordID, &o.Email, &o.Status, &o.Attempts, &o.Reason); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		started  string
		finished sql.NullString
	)
	err := sc.Scan(
		&r.ID, &r.Operation, &r.Status, &r.AbortReason, &r.Error,
		&r.RosterSize, &r.Pages, &r.Matched, &r.Attempted, &r.Succeeded, &r.Failed, &r.Abandoned,
		&r.PreservedID, &started, &finished,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("parse finished_at %q: %w", finished.String, err)
		}
		r.FinishedAt = &t
	}
	return r, nil
}
