// Package grid derives the ordered set of weight combinations swept by a run.
package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStep is returned when the weight step is zero or negative.
	ErrInvalidStep = errors.New("weight step must be positive")

	// ErrInvalidTotal is returned when the total weight is negative.
	ErrInvalidTotal = errors.New("total weight cannot be negative")
)

// Combination is one point of the sweep: a primary-behavior weight and a
// COLREGS weight that together sum to the sweep's total weight.
type Combination struct {
	Primary int `json:"primary" yaml:"primary"`
	Colregs int `json:"colregs" yaml:"colregs"`
}

// Total returns Primary + Colregs.
func (c Combination) Total() int {
	return c.Primary + c.Colregs
}

// Dir returns the directory name used for this combination's trials and archives.
func (c Combination) Dir() string {
	return fmt.Sprintf("pb_pwt_%d_cr_pwt_%d", c.Primary, c.Colregs)
}

func (c Combination) String() string {
	return fmt.Sprintf("primary=%d colregs=%d", c.Primary, c.Colregs)
}

// Generate returns the combinations for a sweep, ordered by descending primary
// weight. Primary starts at total and decreases by step while it stays above -1,
// so 0 is only included when step divides total.
func Generate(total, step int) ([]Combination, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidStep, step)
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTotal, total)
	}

	combos := make([]Combination, 0, total/step+1)
	for primary := total; primary > -1; primary -= step {
		combos = append(combos, Combination{
			Primary: primary,
			Colregs: total - primary,
		})
	}
	return combos, nil
}

// Trial identifies one statistical repeat of a combination.
type Trial struct {
	Combination Combination `json:"combination"`
	Index       int         `json:"index"`
}

func (t Trial) String() string {
	return fmt.Sprintf("%s/trial_%d", t.Combination.Dir(), t.Index)
}

// Trials enumerates every (combination, index) pair in scheduling order:
// combinations outer, repeat index inner.
func Trials(combos []Combination, runs int) []Trial {
	if runs <= 0 {
		return nil
	}
	trials := make([]Trial, 0, len(combos)*runs)
	for _, c := range combos {
		for i := 0; i < runs; i++ {
			trials = append(trials, Trial{Combination: c, Index: i})
		}
	}
	return trials
}
