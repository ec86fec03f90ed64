package store

import (
	"time"

	"github.com/cwbudde/weightsweep/internal/grid"
)

// TrialState is the lifecycle state of a trial, derived from the filesystem.
type TrialState string

const (
	// StateAbsent means the trial directory does not exist.
	StateAbsent TrialState = "absent"
	// StateComplete means the completion marker exists. Terminal.
	StateComplete TrialState = "complete"
	// StateTimedOut means the last attempt exceeded its deadline.
	StateTimedOut TrialState = "timed_out"
	// StateIncomplete means the directory exists without any marker,
	// i.e. the last attempt was interrupted.
	StateIncomplete TrialState = "incomplete"
)

// AllStates lists the states in display order.
var AllStates = []TrialState{StateComplete, StateTimedOut, StateIncomplete, StateAbsent}

// Marker and file names inside a trial directory.
const (
	CompleteMarker = "COMPLETE"
	TimeoutMarker  = "TIMEOUT"
	LogFileName    = "output.log"
	ArchiveDirName = "timeouts"
)

// classify maps the two marker facts of an existing directory to a state.
// Completion wins over timeout since it is terminal.
func classify(complete, timedOut bool) TrialState {
	switch {
	case complete:
		return StateComplete
	case timedOut:
		return StateTimedOut
	default:
		return StateIncomplete
	}
}

// ArchiveEntry describes one archived timed-out attempt.
type ArchiveEntry struct {
	Combination grid.Combination `json:"combination"`
	Index       int              `json:"index"`
	Number      int              `json:"number"`
	Path        string           `json:"path"`
	ModTime     time.Time        `json:"modTime"`
}

// Summary counts trial states, typically for one combination.
type Summary struct {
	Combination grid.Combination   `json:"combination"`
	Counts      map[TrialState]int `json:"counts"`
	Archived    int                `json:"archived"`
}

// Total returns the number of trials counted.
func (s Summary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}
