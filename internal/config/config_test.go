package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 50, cfg.NumStatRuns)
	assert.Equal(t, 450, cfg.TotalWeight)
	assert.Equal(t, 25, cfg.WeightStep)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 40, cfg.Launch.Swimmers)
	assert.Equal(t, 100, cfg.Launch.RescueObservationRadius)
	assert.Equal(t, "learnKill", cfg.Launch.PreKillCommand)
	assert.Equal(t, time.Minute, cfg.Launch.PreKillTimeout)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_directory: /data/sweeps/run1
num_stat_runs: 5
weight_step: 50
timeout: 90s
launch:
  swimmers: 12
  neural_network_dir: /nets/latest
  prekill_timeout: 15s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/sweeps/run1", cfg.LogDirectory)
	assert.Equal(t, 5, cfg.NumStatRuns)
	assert.Equal(t, 50, cfg.WeightStep)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 12, cfg.Launch.Swimmers)
	assert.Equal(t, "/nets/latest", cfg.Launch.NeuralNetworkDir)
	assert.Equal(t, 15*time.Second, cfg.Launch.PreKillTimeout)

	// untouched keys keep defaults
	assert.Equal(t, 450, cfg.TotalWeight)
	assert.Equal(t, "./launch.sh", cfg.Launch.Command)
	assert.Equal(t, 10, cfg.Launch.TimeWarp)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "num_stat_runs: [1, 2\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.LogDirectory = "/tmp/logs"
	require.NoError(t, valid.Validate())

	tests := []struct {
		field  string
		mutate func(*Config)
	}{
		{"log_directory", func(c *Config) { c.LogDirectory = "" }},
		{"num_stat_runs", func(c *Config) { c.NumStatRuns = 0 }},
		{"total_weight", func(c *Config) { c.TotalWeight = -5 }},
		{"weight_step", func(c *Config) { c.WeightStep = 0 }},
		{"timeout", func(c *Config) { c.Timeout = 0 }},
		{"max_retries", func(c *Config) { c.MaxRetries = -1 }},
		{"launch.command", func(c *Config) { c.Launch.Command = "" }},
		{"launch.prekill_timeout", func(c *Config) { c.Launch.PreKillTimeout = 0 }},
		{"launch.working_dir", func(c *Config) { c.Launch.WorkingDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestResolve_ExpandsHomeAndLedger(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := Default()
	cfg.LogDirectory = "~/logs"
	require.NoError(t, cfg.Resolve())

	assert.Equal(t, filepath.Join(home, "logs"), cfg.LogDirectory)
	assert.Equal(t, filepath.Join(home, "moos-ivp-learn/missions/alpha_learn"), cfg.Launch.WorkingDir)
	assert.Equal(t, filepath.Join(home, "logs", DefaultLedgerName), cfg.LedgerPath)
	assert.True(t, cfg.LedgerEnabled())
}

func TestResolve_LedgerDisabled(t *testing.T) {
	cfg := Default()
	cfg.LogDirectory = "/tmp/logs"
	cfg.LedgerPath = "-"
	require.NoError(t, cfg.Resolve())

	assert.False(t, cfg.LedgerEnabled())
}

func TestExpandHome_LeavesOtherPaths(t *testing.T) {
	for _, p := range []string{"/abs/path", "rel/path", "~user/path", ""} {
		got, err := ExpandHome(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestPreKillCommand(t *testing.T) {
	cfg := Default()
	cfg.Launch.WorkingDir = "/missions"
	cfg.Launch.PreKillCommand = "ktm --all"

	cmd := cfg.PreKillCommand()
	assert.Equal(t, "ktm", cmd.Path)
	assert.Equal(t, []string{"--all"}, cmd.Args)
	assert.Equal(t, "/missions", cmd.Dir)

	cfg.Launch.PreKillCommand = ""
	assert.Empty(t, cfg.PreKillCommand().Path)
}

func TestLaunchParams(t *testing.T) {
	cfg := Default()
	p := cfg.LaunchParams()

	assert.Equal(t, cfg.Launch.Command, p.LaunchCommand)
	assert.Equal(t, cfg.Launch.RescueObservationRadius, p.ObservationRadius)
	assert.Equal(t, cfg.Launch.TimeWarp, p.TimeWarp)
}
