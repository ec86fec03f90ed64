package runner

import (
	"fmt"
	"strconv"

	"github.com/cwbudde/weightsweep/internal/grid"
)

// LaunchParams are the pass-through parameters of the simulation launcher.
// None of them is interpreted here beyond formatting.
type LaunchParams struct {
	LaunchCommand     string
	WorkingDir        string
	TimeWarp          int
	Swimmers          int
	NeuralNetworkDir  string
	ObservationRadius int
}

// BuildSimulationCommand returns the launcher invocation for one trial.
// The simulation writes its own logs below trialDir.
func BuildSimulationCommand(p LaunchParams, c grid.Combination, trialDir string) Command {
	return Command{
		Path: p.LaunchCommand,
		Args: []string{
			strconv.Itoa(p.TimeWarp),
			"--r8",
			fmt.Sprintf("--swimmers=%d", p.Swimmers),
			"--uMayFinish",
			"--autodeploy",
			"--rescuebehavior=NeuralNetwork",
			"--neural_network_dir=" + p.NeuralNetworkDir,
			"--r_sense_vehicles",
			fmt.Sprintf("--rescue_observation_radius=%d", p.ObservationRadius),
			fmt.Sprintf("--primary_behavior_weight=%d", c.Primary),
			fmt.Sprintf("--colregs_weight=%d", c.Colregs),
			"--logdir=" + trialDir,
			"--nogui",
		},
		Dir: p.WorkingDir,
	}
}
