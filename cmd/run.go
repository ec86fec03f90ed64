package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/weightsweep/internal/config"
	"github.com/cwbudde/weightsweep/internal/grid"
	"github.com/cwbudde/weightsweep/internal/ledger"
	"github.com/cwbudde/weightsweep/internal/runner"
	"github.com/cwbudde/weightsweep/internal/store"
	"github.com/cwbudde/weightsweep/internal/sweep"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	flags := config.Default()

	cmd := &cobra.Command{
		Use:     "run [log_directory]",
		Aliases: []string{"resume"},
		Short:   "Run or resume the weight sweep",
		Long: `Runs every trial of the sweep that is not complete yet. Completed trials are
skipped, timed-out attempts are archived and retried, interrupted attempts are
discarded and run again. The sweep aborts when a trial exhausts its retries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, root, &flags, args)
			if err != nil {
				return err
			}
			invoker := runner.NewExecInvoker(cfg.PreKillCommand())
			invoker.PreKillTimeout = cfg.Launch.PreKillTimeout
			return runSweep(cmd, cfg, invoker)
		},
	}

	addGridFlags(cmd, &flags)
	addLaunchFlags(cmd, &flags)
	addLedgerFlag(cmd, &flags)
	return cmd
}

func runSweep(cmd *cobra.Command, cfg config.Config, invoker runner.Invoker) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewFSStore(cfg.LogDirectory)
	if err != nil {
		return fmt.Errorf("failed to open log directory: %w", err)
	}

	var (
		recorder sweep.Recorder
		run      *ledger.Run
	)
	if cfg.LedgerEnabled() {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer l.Close()

		snapshot, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to serialize config: %w", err)
		}
		run, err = l.BeginRun(ctx, string(snapshot))
		if err != nil {
			return err
		}
		recorder = run
		slog.Info("Recording attempts", "run_id", run.ID, "ledger", cfg.LedgerPath)
	}

	params := cfg.LaunchParams()
	trialRunner, err := sweep.NewTrialRunner(sweep.TrialRunnerConfig{
		Store:   st,
		Invoker: invoker,
		Command: func(trial grid.Trial, trialDir string) runner.Command {
			return runner.BuildSimulationCommand(params, trial.Combination, trialDir)
		},
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Recorder:   recorder,
	})
	if err != nil {
		return err
	}

	scheduler, err := sweep.NewScheduler(cfg.TotalWeight, cfg.WeightStep, cfg.NumStatRuns, trialRunner)
	if err != nil {
		return err
	}

	summary, sweepErr := scheduler.Run(ctx)

	if run != nil {
		// ctx may already be cancelled here.
		if err := run.Finish(context.Background(), sweepErr); err != nil {
			slog.Warn("Failed to finish ledger run", "run_id", run.ID, "error", err)
		}
	}

	total := len(scheduler.Combinations()) * cfg.NumStatRuns
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d/%d trials complete (%d run now, %d already done, %d attempts, %d non-zero exits) in %s\n",
		summary.Trials, total, summary.Executed, summary.Skipped, summary.Attempts, summary.NonZeroExit,
		summary.Elapsed.Round(time.Millisecond))

	var exhausted *sweep.RetriesExhaustedError
	if errors.As(sweepErr, &exhausted) {
		fmt.Fprintf(out, "Aborted at %s, last attempt kept in %s\n", exhausted.Trial, st.TrialDir(exhausted.Trial))
	}
	return sweepErr
}
