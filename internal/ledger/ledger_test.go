package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/weightsweep/internal/grid"
	"github.com/cwbudde/weightsweep/internal/runner"
	"github.com/cwbudde/weightsweep/internal/sweep"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger", "sweep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func attemptRecord(index, attempt int, outcome runner.Outcome) sweep.AttemptRecord {
	return sweep.AttemptRecord{
		Trial:     grid.Trial{Combination: grid.Combination{Primary: 400, Colregs: 50}, Index: index},
		Attempt:   attempt,
		Outcome:   outcome,
		StartedAt: time.Now(),
		Duration:  1500 * time.Millisecond,
		TrialDir:  fmt.Sprintf("/logs/pb_pwt_400_cr_pwt_50/trial_%d", index),
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.db")

	l, err := Open(path)
	require.NoError(t, err)
	run, err := l.BeginRun(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	runs, err := l.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestRun_RecordAndList(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	run, err := l.BeginRun(ctx, "num_stat_runs: 2\n")
	require.NoError(t, err)

	require.NoError(t, run.RecordAttempt(ctx, attemptRecord(0, 1, runner.OutcomeTimedOut)))
	second := attemptRecord(0, 2, runner.OutcomeCompleted)
	second.ArchiveDir = "/logs/timeouts/pb_pwt_400_cr_pwt_50/trial_0_timeout_0"
	second.ExitCode = 1
	require.NoError(t, run.RecordAttempt(ctx, second))
	require.NoError(t, run.Finish(ctx, nil))

	runs, err := l.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, 2, runs[0].Attempts)
	assert.Equal(t, 1, runs[0].Timeouts)
	assert.Equal(t, "num_stat_runs: 2\n", runs[0].Config)

	attempts, err := l.Attempts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, runner.OutcomeTimedOut, attempts[0].Outcome)
	assert.Equal(t, runner.OutcomeCompleted, attempts[1].Outcome)
	assert.Equal(t, second.ArchiveDir, attempts[1].ArchiveDir)
	assert.Equal(t, 1, attempts[1].ExitCode)
	assert.Equal(t, grid.Combination{Primary: 400, Colregs: 50}, attempts[1].Trial.Combination)
	assert.Equal(t, 1500*time.Millisecond, attempts[1].Duration)
}

func TestRun_FinishStatuses(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	aborted, err := l.BeginRun(ctx, "")
	require.NoError(t, err)
	require.NoError(t, aborted.Finish(ctx, &sweep.RetriesExhaustedError{Attempts: 3}))

	interrupted, err := l.BeginRun(ctx, "")
	require.NoError(t, err)
	require.NoError(t, interrupted.Finish(ctx, fmt.Errorf("sweep interrupted: %w", context.Canceled)))

	open, err := l.BeginRun(ctx, "")
	require.NoError(t, err)

	statuses := map[string]RunInfo{}
	runs, err := l.Runs(ctx)
	require.NoError(t, err)
	for _, r := range runs {
		statuses[r.ID] = r
	}

	assert.Equal(t, StatusAborted, statuses[aborted.ID].Status)
	assert.Contains(t, statuses[aborted.ID].Error, "retries exhausted")
	assert.Equal(t, StatusInterrupted, statuses[interrupted.ID].Status)
	assert.Equal(t, StatusRunning, statuses[open.ID].Status)
	assert.Nil(t, statuses[open.ID].FinishedAt)
}

func TestFindRun(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	run, err := l.BeginRun(ctx, "")
	require.NoError(t, err)

	id, err := l.FindRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, id)

	id, err = l.FindRun(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, id)

	_, err = l.FindRun(ctx, "zzzzzzzz")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestFindRun_PrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	_, err := l.BeginRun(ctx, "")
	require.NoError(t, err)

	for _, pattern := range []string{"", "%", "________", "_%"} {
		_, err := l.FindRun(ctx, pattern)
		assert.ErrorIs(t, err, ErrRunNotFound, "pattern %q", pattern)
	}
}

func TestAttempts_UnknownRun(t *testing.T) {
	l := openTestLedger(t)

	attempts, err := l.Attempts(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
