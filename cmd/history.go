package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/weightsweep/internal/config"
	"github.com/cwbudde/weightsweep/internal/ledger"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var ledgerPath string

	cmd := &cobra.Command{
		Use:   "history <log_directory> [run-id]",
		Short: "Show recorded sweep runs, or the attempts of one run",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ledgerPath
			if path == "" {
				dir, err := config.ExpandHome(args[0])
				if err != nil {
					return err
				}
				path = filepath.Join(dir, config.DefaultLedgerName)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no ledger at %s: %w", path, err)
			}

			l, err := ledger.Open(path)
			if err != nil {
				return err
			}
			defer l.Close()

			if len(args) == 2 {
				return printAttempts(cmd, l, args[1])
			}
			return printRuns(cmd, l)
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Ledger database (default <log_directory>/sweep.db)")
	return cmd
}

func printRuns(cmd *cobra.Command, l *ledger.Ledger) error {
	runs, err := l.Runs(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tDURATION\tSTATUS\tATTEMPTS\tTIMEOUTS")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			shortID(r.ID),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			duration,
			r.Status,
			r.Attempts,
			r.Timeouts,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal runs: %d\n", len(runs))
	return nil
}

func printAttempts(cmd *cobra.Command, l *ledger.Ledger, idOrPrefix string) error {
	runID, err := l.FindRun(cmd.Context(), idOrPrefix)
	if err != nil {
		return err
	}

	attempts, err := l.Attempts(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d attempt(s)\n\n", runID, len(attempts))
	if len(attempts) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tATTEMPT\tOUTCOME\tEXIT\tDURATION\tARCHIVED PREVIOUS")
	for _, a := range attempts {
		archived := "-"
		if a.ArchiveDir != "" {
			archived = filepath.Base(a.ArchiveDir)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n",
			a.Trial,
			a.Attempt,
			a.Outcome,
			a.ExitCode,
			a.Duration.Round(time.Second),
			archived,
		)
	}
	w.Flush()
	return nil
}

// shortID truncates a run ID for display
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}
