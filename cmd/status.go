package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/weightsweep/internal/config"
	"github.com/cwbudde/weightsweep/internal/grid"
	"github.com/cwbudde/weightsweep/internal/store"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	flags := config.Default()

	cmd := &cobra.Command{
		Use:   "status [log_directory]",
		Short: "Show per-combination trial states",
		Long: `Inspects every trial directory of the sweep and counts complete, timed out,
incomplete and not yet started trials per weight combination.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, root, &flags, args)
			if err != nil {
				return err
			}
			return runStatus(cmd, cfg)
		},
	}

	addGridFlags(cmd, &flags)
	return cmd
}

func runStatus(cmd *cobra.Command, cfg config.Config) error {
	if cfg.LogDirectory == "" {
		return fmt.Errorf("log directory is required")
	}
	if _, err := os.Stat(cfg.LogDirectory); err != nil {
		return fmt.Errorf("failed to open log directory: %w", err)
	}

	combos, err := grid.Generate(cfg.TotalWeight, cfg.WeightStep)
	if err != nil {
		return err
	}

	st, err := store.NewFSStore(cfg.LogDirectory)
	if err != nil {
		return err
	}

	summaries, err := st.Summarize(grid.Trials(combos, cfg.NumStatRuns))
	if err != nil {
		return fmt.Errorf("failed to inspect trials: %w", err)
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIMARY\tCOLREGS\tCOMPLETE\tTIMED OUT\tINCOMPLETE\tABSENT\tARCHIVED")

	totals := make(map[store.TrialState]int)
	archived := 0
	for _, s := range summaries {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.Combination.Primary,
			s.Combination.Colregs,
			s.Counts[store.StateComplete],
			s.Counts[store.StateTimedOut],
			s.Counts[store.StateIncomplete],
			s.Counts[store.StateAbsent],
			s.Archived,
		)
		for state, n := range s.Counts {
			totals[state] += n
		}
		archived += s.Archived
	}
	w.Flush()

	trials := len(combos) * cfg.NumStatRuns
	fmt.Fprintf(out, "\n%d/%d trials complete, %d timed out, %d incomplete, %d archived attempts\n",
		totals[store.StateComplete], trials, totals[store.StateTimedOut], totals[store.StateIncomplete], archived)
	return nil
}
