package main

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/weightsweep/internal/config"
)

// addGridFlags registers the flags that shape the sweep grid.
func addGridFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().IntVarP(&cfg.NumStatRuns, "num-stat-runs", "n", cfg.NumStatRuns, "Number of statistical runs per weight combination")
	cmd.Flags().IntVar(&cfg.TotalWeight, "total-weight", cfg.TotalWeight, "Total weight to distribute between behaviors")
	cmd.Flags().IntVar(&cfg.WeightStep, "weight-step", cfg.WeightStep, "Step size for weight increments")
}

// addLaunchFlags registers the flags of the trial runner and the launcher.
func addLaunchFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Wall-clock limit per simulation attempt")
	cmd.Flags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Simulation attempts per trial before the sweep aborts")
	cmd.Flags().StringVar(&cfg.Launch.WorkingDir, "working-dir", cfg.Launch.WorkingDir, "Directory the launcher and pre-kill command run in")
	cmd.Flags().StringVar(&cfg.Launch.Command, "launch-command", cfg.Launch.Command, "Simulation launcher")
	cmd.Flags().StringVar(&cfg.Launch.PreKillCommand, "prekill-command", cfg.Launch.PreKillCommand, "Cleanup command run before every attempt (empty to disable)")
	cmd.Flags().DurationVar(&cfg.Launch.PreKillTimeout, "prekill-timeout", cfg.Launch.PreKillTimeout, "Wall-clock limit of the cleanup command")
	cmd.Flags().IntVar(&cfg.Launch.TimeWarp, "time-warp", cfg.Launch.TimeWarp, "Simulation time warp")
	cmd.Flags().IntVar(&cfg.Launch.Swimmers, "swimmers", cfg.Launch.Swimmers, "Number of swimmers")
	cmd.Flags().StringVar(&cfg.Launch.NeuralNetworkDir, "neural-network-dir", cfg.Launch.NeuralNetworkDir, "Directory containing the neural network")
	cmd.Flags().IntVar(&cfg.Launch.RescueObservationRadius, "rescue-observation-radius", cfg.Launch.RescueObservationRadius, "Rescue observation radius")
}

func addLedgerFlag(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.LedgerPath, "ledger", "", `Attempt ledger database (default <log_directory>/sweep.db, "-" disables)`)
}

// resolveConfig builds the effective configuration: defaults, then the
// --config file, then flags that were set explicitly, then the positional
// log directory.
func resolveConfig(cmd *cobra.Command, root *rootOptions, flags *config.Config, args []string) (config.Config, error) {
	cfg := config.Default()
	if root.configPath != "" {
		var err error
		if cfg, err = config.Load(root.configPath); err != nil {
			return cfg, err
		}
	}

	overrides := map[string]func(){
		"num-stat-runs":             func() { cfg.NumStatRuns = flags.NumStatRuns },
		"total-weight":              func() { cfg.TotalWeight = flags.TotalWeight },
		"weight-step":               func() { cfg.WeightStep = flags.WeightStep },
		"timeout":                   func() { cfg.Timeout = flags.Timeout },
		"max-retries":               func() { cfg.MaxRetries = flags.MaxRetries },
		"working-dir":               func() { cfg.Launch.WorkingDir = flags.Launch.WorkingDir },
		"launch-command":            func() { cfg.Launch.Command = flags.Launch.Command },
		"prekill-command":           func() { cfg.Launch.PreKillCommand = flags.Launch.PreKillCommand },
		"prekill-timeout":           func() { cfg.Launch.PreKillTimeout = flags.Launch.PreKillTimeout },
		"time-warp":                 func() { cfg.Launch.TimeWarp = flags.Launch.TimeWarp },
		"swimmers":                  func() { cfg.Launch.Swimmers = flags.Launch.Swimmers },
		"neural-network-dir":        func() { cfg.Launch.NeuralNetworkDir = flags.Launch.NeuralNetworkDir },
		"rescue-observation-radius": func() { cfg.Launch.RescueObservationRadius = flags.Launch.RescueObservationRadius },
		"ledger":                    func() { cfg.LedgerPath = flags.LedgerPath },
	}
	for name, apply := range overrides {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}

	if len(args) > 0 {
		cfg.LogDirectory = args[0]
	}

	if err := cfg.Resolve(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
