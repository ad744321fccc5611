// v0
// internal/trajectory/idle.go
package trajectory

import "fmt"

// IdlePolicy decides what a car does once its committed turnpoints run out.
type IdlePolicy interface {
	// TimeUntilIdle is the number of ticks before the car has nothing left to do.
	TimeUntilIdle(t *Trajectory) int64
	// Drift is the floor offset (-1, 0 or +1) applied when no turnpoints remain.
	Drift(t *Trajectory) int
	String() string
}

// Stay parks the car wherever it finished its last task.
type Stay struct{}

func (Stay) TimeUntilIdle(t *Trajectory) int64 { return t.timeLeft }
func (Stay) Drift(*Trajectory) int             { return 0 }
func (Stay) String() string                    { return "stay" }

// Home returns the car to a fixed floor once it runs out of work.
type Home struct {
	Floor int
}

func (h Home) TimeUntilIdle(t *Trajectory) int64 {
	if t.timeLeft > 0 {
		return t.timeLeft + abs(t.EndFloor()-h.Floor)
	}
	return abs(t.floor - h.Floor)
}

func (h Home) Drift(t *Trajectory) int { return compare(h.Floor, t.floor) }

func (h Home) String() string { return fmt.Sprintf("home(%d)", h.Floor) }

func abs(x int) int64 {
	if x < 0 {
		return int64(-x)
	}
	return int64(x)
}

func compare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
