package sweep

import (
	"fmt"

	"github.com/cwbudde/weightsweep/internal/grid"
)

// RetriesExhaustedError aborts a sweep when a trial kept timing out.
type RetriesExhaustedError struct {
	Trial    grid.Trial
	Attempts int
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("trial %d of combination (%s) timed out %d time(s), retries exhausted",
		e.Trial.Index, e.Trial.Combination, e.Attempts)
}

// Is lets errors.Is(err, &RetriesExhaustedError{}) match any exhaustion error.
func (e *RetriesExhaustedError) Is(target error) bool {
	_, ok := target.(*RetriesExhaustedError)
	return ok
}
