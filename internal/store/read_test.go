package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/engine"
)

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		// Sub-second offsets exercise the fixed-width timestamp ordering.
		at := started.Add(time.Duration(i) * 500 * time.Millisecond)
		require.NoError(t, s.BeginRun(ctx, fmt.Sprintf("run-%d", i), engine.OpDeleteAll, at))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-0", runs[3].ID)
}

func TestListRuns_Limit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.BeginRun(ctx, fmt.Sprintf("run-%d", i), engine.OpDeleteAll, started.Add(time.Duration(i)*time.Minute)))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)
}

func TestListRuns_EmptyIsNotNil(t *testing.T) {
	s := openTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestGetRun_Missing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRunOutcomes_Ordered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, "run-1", engine.OpDeleteAll, started))

	for _, seq := range []int{3, 1, 2} {
		require.NoError(t, s.RecordOutcome(ctx, "run-1", seq, engine.Outcome{
			Kind: engine.KindDelete, RecordID: fmt.Sprintf("auth0|%d", seq), Status: engine.StatusSucceeded, Attempts: 1,
		}))
	}

	outcomes, err := s.RunOutcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{outcomes[0].Seq, outcomes[1].Seq, outcomes[2].Seq})
}
