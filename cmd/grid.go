package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/weightsweep/internal/config"
	"github.com/cwbudde/weightsweep/internal/grid"
)

func newGridCmd(root *rootOptions) *cobra.Command {
	flags := config.Default()

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the weight combinations of the sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, root, &flags, args)
			if err != nil {
				return err
			}
			return printGrid(cmd, cfg)
		},
	}

	addGridFlags(cmd, &flags)
	return cmd
}

func printGrid(cmd *cobra.Command, cfg config.Config) error {
	combos, err := grid.Generate(cfg.TotalWeight, cfg.WeightStep)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPRIMARY\tCOLREGS\tDIRECTORY")
	for i, c := range combos {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", i+1, c.Primary, c.Colregs, c.Dir())
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d combinations x %d runs = %d trials\n",
		len(combos), cfg.NumStatRuns, len(combos)*cfg.NumStatRuns)
	return nil
}
