package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/weightsweep/internal/config"
	"github.com/cwbudde/weightsweep/internal/grid"
	"github.com/cwbudde/weightsweep/internal/store"
)

func newArchivesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "Inspect archived timed-out attempts",
		Long: `Timed-out attempts are moved, not deleted, before a trial is retried.
They are kept below <log_directory>/timeouts for post-mortem inspection.`,
	}

	cmd.AddCommand(newListArchivesCmd(root))
	return cmd
}

func newListArchivesCmd(root *rootOptions) *cobra.Command {
	flags := config.Default()

	cmd := &cobra.Command{
		Use:   "list [log_directory]",
		Short: "List archived attempts with their size",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, root, &flags, args)
			if err != nil {
				return err
			}
			return runListArchives(cmd, cfg)
		},
	}

	addGridFlags(cmd, &flags)
	return cmd
}

func runListArchives(cmd *cobra.Command, cfg config.Config) error {
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

	var archives []store.ArchiveEntry
	for _, c := range combos {
		entries, err := st.ListArchives(c)
		if err != nil {
			return fmt.Errorf("failed to list archives: %w", err)
		}
		archives = append(archives, entries...)
	}

	out := cmd.OutOrStdout()
	if len(archives) == 0 {
		fmt.Fprintln(out, "No archived attempts found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMBINATION\tTRIAL\tARCHIVE\tSIZE\tMODIFIED")
	fmt.Fprintln(w, "-----------\t-----\t-------\t----\t--------")

	var total int64
	for _, a := range archives {
		size, err := getDirSize(a.Path)
		sizeStr := "unknown"
		if err == nil {
			sizeStr = humanize.Bytes(uint64(size))
			total += size
		}

		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			a.Combination.Dir(),
			a.Index,
			filepath.Base(a.Path),
			sizeStr,
			humanize.Time(a.ModTime),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal archived attempts: %d (%s)\n", len(archives), humanize.Bytes(uint64(total)))
	return nil
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
