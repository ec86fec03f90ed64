package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/weightsweep/internal/grid"
	"github.com/cwbudde/weightsweep/internal/runner"
	"github.com/cwbudde/weightsweep/internal/store"
)

// CommandFunc builds the simulation command of a trial.
type CommandFunc func(trial grid.Trial, trialDir string) runner.Command

// AttemptRecord describes one finished simulation attempt.
type AttemptRecord struct {
	Trial      grid.Trial
	Attempt    int
	Outcome    runner.Outcome
	ExitCode   int
	StartedAt  time.Time
	Duration   time.Duration
	TrialDir   string
	ArchiveDir string // set when a previous timed-out attempt was archived first
}

// Recorder receives attempt records. Failing to record never fails a trial.
type Recorder interface {
	RecordAttempt(ctx context.Context, rec AttemptRecord) error
}

// TrialResult is the outcome of TrialRunner.Run.
type TrialResult struct {
	Trial grid.Trial
	// Attempts is the number of simulation runs made by this call.
	Attempts int
	// Skipped reports that the trial was already complete.
	Skipped bool
	// ExitCode of the completing run; zero when skipped.
	ExitCode int
}

// TrialRunner makes a single trial complete.
type TrialRunner struct {
	store      store.Store
	invoker    runner.Invoker
	command    CommandFunc
	timeout    time.Duration
	maxRetries int
	recorder   Recorder
}

// TrialRunnerConfig configures a TrialRunner.
type TrialRunnerConfig struct {
	Store      store.Store
	Invoker    runner.Invoker
	Command    CommandFunc
	Timeout    time.Duration
	MaxRetries int
	Recorder   Recorder // optional
}

// NewTrialRunner creates a TrialRunner.
func NewTrialRunner(cfg TrialRunnerConfig) (*TrialRunner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("invoker cannot be nil")
	}
	if cfg.Command == nil {
		return nil, fmt.Errorf("command builder cannot be nil")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}

	return &TrialRunner{
		store:      cfg.Store,
		invoker:    cfg.Invoker,
		command:    cfg.Command,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		recorder:   cfg.Recorder,
	}, nil
}

// maxAttempts is the number of simulation runs one Run call may make.
// A timeout bumps the retry counter and the trial is retried while the
// counter is below maxRetries, so at least one run always happens.
func (r *TrialRunner) maxAttempts() int {
	if r.maxRetries < 1 {
		return 1
	}
	return r.maxRetries
}

// Run brings the trial to the Complete state. Filesystem and process start
// errors are returned immediately; a trial that times out on every allowed
// attempt returns a *RetriesExhaustedError and stays TimedOut on disk.
func (r *TrialRunner) Run(ctx context.Context, trial grid.Trial) (TrialResult, error) {
	result := TrialResult{Trial: trial}
	limit := r.maxAttempts()

	for attempt := 1; attempt <= limit; attempt++ {
		state, err := r.store.Inspect(trial)
		if err != nil {
			return result, fmt.Errorf("failed to inspect trial %s: %w", trial, err)
		}

		var archiveDir string
		switch state {
		case store.StateComplete:
			result.Skipped = result.Attempts == 0
			return result, nil
		case store.StateTimedOut:
			archiveDir, err = r.store.ArchiveTimeout(trial)
			if err != nil {
				return result, fmt.Errorf("failed to archive trial %s: %w", trial, err)
			}
		case store.StateIncomplete:
			if err := r.store.DiscardIncomplete(trial); err != nil {
				return result, fmt.Errorf("failed to discard trial %s: %w", trial, err)
			}
		}

		rec, err := r.attempt(ctx, trial, attempt)
		result.Attempts = attempt
		if err != nil {
			return result, err
		}
		rec.ArchiveDir = archiveDir
		r.record(ctx, rec)

		if rec.Outcome == runner.OutcomeCompleted {
			if err := r.store.MarkComplete(trial); err != nil {
				return result, fmt.Errorf("failed to mark trial %s complete: %w", trial, err)
			}
			if rec.ExitCode != 0 {
				slog.Warn("Simulation exited with non-zero status, marked complete",
					"trial", trial.String(), "exit_code", rec.ExitCode)
			}
			result.ExitCode = rec.ExitCode
			return result, nil
		}

		if err := r.store.MarkTimeout(trial); err != nil {
			return result, fmt.Errorf("failed to mark trial %s timed out: %w", trial, err)
		}
		slog.Warn("Trial timed out",
			"trial", trial.String(),
			"attempt", attempt,
			"max_attempts", limit,
			"timeout", r.timeout,
		)
	}

	return result, &RetriesExhaustedError{Trial: trial, Attempts: result.Attempts}
}

// attempt performs one fresh run in an empty trial directory.
func (r *TrialRunner) attempt(ctx context.Context, trial grid.Trial, attempt int) (AttemptRecord, error) {
	rec := AttemptRecord{Trial: trial, Attempt: attempt}

	if err := r.store.EnsureDirectory(trial); err != nil {
		return rec, fmt.Errorf("failed to prepare trial %s: %w", trial, err)
	}
	rec.TrialDir = r.store.TrialDir(trial)

	logFile, err := r.store.OpenLog(trial)
	if err != nil {
		return rec, fmt.Errorf("failed to open log for trial %s: %w", trial, err)
	}

	r.invoker.PreKill(ctx, logFile)

	cmd := r.command(trial, rec.TrialDir)
	slog.Debug("Launching simulation", "trial", trial.String(), "attempt", attempt, "command", cmd.String())

	rec.StartedAt = time.Now()
	res, err := r.invoker.Simulate(ctx, cmd, logFile, r.timeout)
	closeErr := logFile.Close()
	if err != nil {
		return rec, fmt.Errorf("trial %s: %w", trial, err)
	}
	if closeErr != nil {
		return rec, fmt.Errorf("failed to close log for trial %s: %w", trial, closeErr)
	}

	rec.Outcome = res.Outcome
	rec.ExitCode = res.ExitCode
	rec.Duration = res.Duration
	return rec, nil
}

func (r *TrialRunner) record(ctx context.Context, rec AttemptRecord) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordAttempt(ctx, rec); err != nil {
		slog.Warn("Failed to record attempt", "trial", rec.Trial.String(), "error", err)
	}
}
