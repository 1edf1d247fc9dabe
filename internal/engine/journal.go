package engine

import (
	"context"
	"time"
)

// Journal receives an audit trail of mutating runs. *store.Store
// implements it.
//
// Journal errors never stop a batch; the orchestrator logs them and moves on.
type Journal interface {
	BeginRun(ctx context.Context, runID, operation string, startedAt time.Time) error
	RecordOutcome(ctx context.Context, runID string, seq int, o Outcome) error
	FinishRun(ctx context.Context, r *Report) error
}

type nopJournal struct{}

func (nopJournal) BeginRun(context.Context, string, string, time.Time) error { return nil }

func (nopJournal) RecordOutcome(context.Context, string, int, Outcome) error { return nil }

func (nopJournal) FinishRun(context.Context, *Report) error { return nil }
