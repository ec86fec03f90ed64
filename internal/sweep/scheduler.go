package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/weightsweep/internal/grid"
)

// Runner makes one trial complete. *TrialRunner implements it.
type Runner interface {
	Run(ctx context.Context, trial grid.Trial) (TrialResult, error)
}

// Summary reports the work done by a sweep, including an aborted one.
type Summary struct {
	Combinations int           `json:"combinations"`
	Trials       int           `json:"trials"`
	Skipped      int           `json:"skipped"`
	Executed     int           `json:"executed"`
	Attempts     int           `json:"attempts"`
	NonZeroExit  int           `json:"nonZeroExit"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Scheduler runs every trial of a sweep sequentially.
type Scheduler struct {
	combos []grid.Combination
	runs   int
	runner Runner
}

// NewScheduler creates a scheduler for the grid (total, step) with runs
// statistical repeats per combination.
func NewScheduler(total, step, runs int, runner Runner) (*Scheduler, error) {
	combos, err := grid.Generate(total, step)
	if err != nil {
		return nil, err
	}
	if runs < 1 {
		return nil, fmt.Errorf("number of statistical runs must be positive, got %d", runs)
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}

	return &Scheduler{
		combos: combos,
		runs:   runs,
		runner: runner,
	}, nil
}

// Combinations returns the sweep grid.
func (s *Scheduler) Combinations() []grid.Combination {
	return s.combos
}

// Run visits every (combination, index) pair, combination outer and index
// inner. The first error aborts the sweep; later trials are not attempted.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	start := time.Now()

	total := len(s.combos) * s.runs
	slog.Info("Starting sweep", "combinations", len(s.combos), "runs_per_combination", s.runs, "trials", total)

	for ci, combo := range s.combos {
		slog.Info("Running combination",
			"primary_behavior_weight", combo.Primary,
			"colregs_weight", combo.Colregs,
			"combination", ci+1,
			"of", len(s.combos),
		)

		for i := 0; i < s.runs; i++ {
			if err := ctx.Err(); err != nil {
				summary.Elapsed = time.Since(start)
				return summary, fmt.Errorf("sweep interrupted: %w", err)
			}

			trial := grid.Trial{Combination: combo, Index: i}
			res, err := s.runner.Run(ctx, trial)
			summary.Attempts += res.Attempts
			if err != nil {
				summary.Elapsed = time.Since(start)
				slog.Error("Sweep aborted", "trial", trial.String(), "error", err)
				return summary, err
			}

			summary.Trials++
			if res.Skipped {
				summary.Skipped++
				slog.Debug("Trial already complete", "trial", trial.String())
			} else {
				summary.Executed++
				if res.ExitCode != 0 {
					summary.NonZeroExit++
				}
				slog.Info("Trial complete",
					"trial", trial.String(),
					"run", fmt.Sprintf("%d/%d", i+1, s.runs),
					"attempts", res.Attempts,
					"progress", fmt.Sprintf("%d/%d", summary.Trials, total),
				)
			}
		}
		summary.Combinations++
	}

	summary.Elapsed = time.Since(start)
	slog.Info("Sweep finished",
		"trials", summary.Trials,
		"executed", summary.Executed,
		"skipped", summary.Skipped,
		"attempts", summary.Attempts,
		"elapsed", summary.Elapsed,
	)
	return summary, nil
}
