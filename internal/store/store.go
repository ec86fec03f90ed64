package store

import (
	"io"

	"github.com/cwbudde/weightsweep/internal/grid"
)

// Store defines the persistence operations for trial lifecycle state.
// The state of a trial lives entirely in its directory and two marker files;
// every transition the trial runner makes goes through this interface.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return a *StateError when a transition is requested from the wrong state
//   - Wrap underlying filesystem errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// TrialDir returns the deterministic directory of a trial.
	TrialDir(trial grid.Trial) string

	// Inspect reconstructs the trial's state from the filesystem.
	Inspect(trial grid.Trial) (TrialState, error)

	// EnsureDirectory creates the trial directory and its parents.
	EnsureDirectory(trial grid.Trial) error

	// OpenLog creates (or truncates) the trial's output.log for a new attempt.
	OpenLog(trial grid.Trial) (io.WriteCloser, error)

	// MarkComplete creates the completion marker. Idempotent.
	MarkComplete(trial grid.Trial) error

	// MarkTimeout creates the timeout marker. Idempotent.
	MarkTimeout(trial grid.Trial) error

	// ArchiveTimeout moves a timed-out trial directory into the timeout
	// archive under the next unused number for the trial's index and returns
	// the new path. Returns a *StateError unless the trial is TimedOut.
	ArchiveTimeout(trial grid.Trial) (string, error)

	// DiscardIncomplete removes a trial directory that carries no marker.
	// Returns a *StateError unless the trial is Incomplete.
	DiscardIncomplete(trial grid.Trial) error
}

// StateError reports a transition requested from a state that does not allow it.
type StateError struct {
	Trial    grid.Trial
	Op       string
	Expected TrialState
	Actual   TrialState
}

func (e *StateError) Error() string {
	return "state error: " + e.Op + " " + e.Trial.String() +
		" (expected " + string(e.Expected) + ", got " + string(e.Actual) + ")"
}

// Is lets errors.Is(err, &StateError{}) match any state error.
func (e *StateError) Is(target error) bool {
	_, ok := target.(*StateError)
	return ok
}
