// Package ledger keeps a SQLite history of sweep invocations and of every
// simulation attempt they made. The trial directories stay the source of
// truth for trial state; the ledger only answers "what happened when".
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cwbudde/weightsweep/internal/grid"
	"github.com/cwbudde/weightsweep/internal/runner"
	"github.com/cwbudde/weightsweep/internal/sweep"
)

//go:embed schema.sql
var schemaSQL string

// Run statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusAborted     = "aborted"
	StatusInterrupted = "interrupted"
)

// ErrRunNotFound is returned when no run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Ledger is an open ledger database.
type Ledger struct {
	db *sql.DB
}

// RunInfo summarizes one sweep invocation.
type RunInfo struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Error      string
	Config     string
	Attempts   int
	Timeouts   int
}

// AttemptInfo is one recorded simulation attempt.
type AttemptInfo struct {
	RunID      string
	Trial      grid.Trial
	Attempt    int
	Outcome    runner.Outcome
	ExitCode   int
	StartedAt  time.Time
	Duration   time.Duration
	TrialDir   string
	ArchiveDir string
}

// Open creates or opens the ledger at path and applies the schema.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// A single connection keeps the pragmas below in effect for every query.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply ledger schema: %w", err)
	}

	slog.Debug("Ledger opened", "path", path)
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginRun registers a new sweep invocation. config is an opaque snapshot
// of the configuration, stored for later inspection.
func (l *Ledger) BeginRun(ctx context.Context, config string) (*Run, error) {
	id := uuid.New().String()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, status, config) VALUES (?, ?, ?, ?)`,
		id, time.Now().UnixMilli(), StatusRunning, config)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return &Run{ID: id, ledger: l}, nil
}

// Runs lists sweep invocations, most recent first.
func (l *Ledger) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.run_id, r.started_at, r.finished_at, r.status, r.error, r.config,
		       COUNT(a.attempt_id),
		       COALESCE(SUM(CASE WHEN a.outcome = ? THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN attempts a ON a.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_at DESC, r.rowid DESC`, string(runner.OutcomeTimedOut))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var (
			info     RunInfo
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&info.ID, &started, &finished, &info.Status, &info.Error, &info.Config,
			&info.Attempts, &info.Timeouts); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		info.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			t := time.UnixMilli(finished.Int64)
			info.FinishedAt = &t
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// FindRun resolves a full run ID or a unique prefix of one.
func (l *Ledger) FindRun(ctx context.Context, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", fmt.Errorf("%w: empty run id", ErrRunNotFound)
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id FROM runs WHERE substr(run_id, 1, length(?)) = ? LIMIT 2`,
		idOrPrefix, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		if id == idOrPrefix {
			return id, nil
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("run id prefix %q is ambiguous", idOrPrefix)
	}
}

// Attempts lists the attempts of a run in the order they were made.
func (l *Ledger) Attempts(ctx context.Context, runID string) ([]AttemptInfo, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, primary_weight, colregs_weight, trial_index, attempt, outcome,
		       exit_code, started_at, duration_ms, trial_dir, archive_dir
		FROM attempts
		WHERE run_id = ?
		ORDER BY attempt_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []AttemptInfo{}
	for rows.Next() {
		var (
			a          AttemptInfo
			outcome    string
			started    int64
			durationMs int64
		)
		if err := rows.Scan(&a.RunID, &a.Trial.Combination.Primary, &a.Trial.Combination.Colregs,
			&a.Trial.Index, &a.Attempt, &outcome, &a.ExitCode, &started, &durationMs,
			&a.TrialDir, &a.ArchiveDir); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Outcome = runner.Outcome(outcome)
		a.StartedAt = time.UnixMilli(started)
		a.Duration = time.Duration(durationMs) * time.Millisecond
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Run is an open sweep invocation. It implements sweep.Recorder.
type Run struct {
	ID     string
	ledger *Ledger
}

var _ sweep.Recorder = (*Run)(nil)

// RecordAttempt stores one finished attempt.
func (r *Run) RecordAttempt(ctx context.Context, rec sweep.AttemptRecord) error {
	_, err := r.ledger.db.ExecContext(ctx, `
		INSERT INTO attempts (run_id, primary_weight, colregs_weight, trial_index, attempt,
		                      outcome, exit_code, started_at, duration_ms, trial_dir, archive_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		rec.Trial.Combination.Primary,
		rec.Trial.Combination.Colregs,
		rec.Trial.Index,
		rec.Attempt,
		string(rec.Outcome),
		rec.ExitCode,
		rec.StartedAt.UnixMilli(),
		rec.Duration.Milliseconds(),
		rec.TrialDir,
		rec.ArchiveDir,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// Finish closes the run with a status derived from the sweep error.
func (r *Run) Finish(ctx context.Context, sweepErr error) error {
	status := StatusCompleted
	msg := ""
	switch {
	case sweepErr == nil:
	case errors.Is(sweepErr, context.Canceled):
		status = StatusInterrupted
		msg = sweepErr.Error()
	default:
		status = StatusAborted
		msg = sweepErr.Error()
	}

	_, err := r.ledger.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE run_id = ?`,
		time.Now().UnixMilli(), status, msg, r.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}
