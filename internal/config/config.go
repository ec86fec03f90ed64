// Package config holds the sweep configuration: defaults, an optional YAML
// file and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/weightsweep/internal/runner"
)

// Config is the full sweep configuration.
type Config struct {
	LogDirectory string `yaml:"log_directory"`
	LedgerPath   string `yaml:"ledger_path"`

	NumStatRuns int           `yaml:"num_stat_runs"`
	TotalWeight int           `yaml:"total_weight"`
	WeightStep  int           `yaml:"weight_step"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`

	Launch LaunchConfig `yaml:"launch"`
}

// LaunchConfig describes how the external simulation is started. The values
// are handed to the launcher verbatim.
type LaunchConfig struct {
	WorkingDir              string        `yaml:"working_dir"`
	Command                 string        `yaml:"command"`
	PreKillCommand          string        `yaml:"prekill_command"`
	PreKillTimeout          time.Duration `yaml:"prekill_timeout"`
	TimeWarp                int           `yaml:"time_warp"`
	Swimmers                int           `yaml:"swimmers"`
	NeuralNetworkDir        string        `yaml:"neural_network_dir"`
	RescueObservationRadius int           `yaml:"rescue_observation_radius"`
}

// DefaultLedgerName is the ledger file created inside the log directory
// when no ledger path is configured.
const DefaultLedgerName = "sweep.db"

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		NumStatRuns: 50,
		TotalWeight: 450,
		WeightStep:  25,
		Timeout:     10 * time.Minute,
		MaxRetries:  3,
		Launch: LaunchConfig{
			WorkingDir:              "~/moos-ivp-learn/missions/alpha_learn",
			Command:                 "./launch.sh",
			PreKillCommand:          "learnKill",
			PreKillTimeout:          runner.DefaultPreKillTimeout,
			TimeWarp:                10,
			Swimmers:                40,
			NeuralNetworkDir:        "~/moos-ivp-learn/missions/alpha_learn/net-bv",
			RescueObservationRadius: 100,
		},
	}
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Resolve expands "~" in all paths and fills the ledger path default. It is
// applied once, after flags have been merged, so later code never depends on
// the process's home or working directory implicitly.
func (c *Config) Resolve() error {
	var err error
	if c.LogDirectory, err = ExpandHome(c.LogDirectory); err != nil {
		return err
	}
	if c.Launch.WorkingDir, err = ExpandHome(c.Launch.WorkingDir); err != nil {
		return err
	}
	if c.Launch.NeuralNetworkDir, err = ExpandHome(c.Launch.NeuralNetworkDir); err != nil {
		return err
	}

	if c.LedgerPath == "" && c.LogDirectory != "" {
		c.LedgerPath = filepath.Join(c.LogDirectory, DefaultLedgerName)
	} else if c.LedgerPath != "" && c.LedgerPath != "-" {
		if c.LedgerPath, err = ExpandHome(c.LedgerPath); err != nil {
			return err
		}
	}
	return nil
}

// LedgerEnabled reports whether attempts are recorded. A ledger path of "-"
// disables the ledger.
func (c *Config) LedgerEnabled() bool {
	return c.LedgerPath != "" && c.LedgerPath != "-"
}

// Validate checks that the configuration can drive a sweep.
func (c *Config) Validate() error {
	if c.LogDirectory == "" {
		return &ValidationError{Field: "log_directory", Reason: "cannot be empty"}
	}
	if c.NumStatRuns < 1 {
		return &ValidationError{Field: "num_stat_runs", Reason: "must be positive"}
	}
	if c.TotalWeight < 0 {
		return &ValidationError{Field: "total_weight", Reason: "cannot be negative"}
	}
	if c.WeightStep < 1 {
		return &ValidationError{Field: "weight_step", Reason: "must be positive"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Reason: "must be positive"}
	}
	if c.MaxRetries < 0 {
		return &ValidationError{Field: "max_retries", Reason: "cannot be negative"}
	}
	if c.Launch.Command == "" {
		return &ValidationError{Field: "launch.command", Reason: "cannot be empty"}
	}
	if c.Launch.PreKillTimeout <= 0 {
		return &ValidationError{Field: "launch.prekill_timeout", Reason: "must be positive"}
	}
	if c.Launch.WorkingDir == "" {
		return &ValidationError{Field: "launch.working_dir", Reason: "cannot be empty"}
	}
	return nil
}

// LaunchParams converts the launch section for the runner package.
func (c *Config) LaunchParams() runner.LaunchParams {
	return runner.LaunchParams{
		LaunchCommand:     c.Launch.Command,
		WorkingDir:        c.Launch.WorkingDir,
		TimeWarp:          c.Launch.TimeWarp,
		Swimmers:          c.Launch.Swimmers,
		NeuralNetworkDir:  c.Launch.NeuralNetworkDir,
		ObservationRadius: c.Launch.RescueObservationRadius,
	}
}

// PreKillCommand returns the cleanup command, run in the launch working
// directory. Extra words in the configured value become arguments.
func (c *Config) PreKillCommand() runner.Command {
	fields := strings.Fields(c.Launch.PreKillCommand)
	if len(fields) == 0 {
		return runner.Command{}
	}
	return runner.Command{Path: fields[0], Args: fields[1:], Dir: c.Launch.WorkingDir}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ValidationError represents an invalid configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}
