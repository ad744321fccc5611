// v0
// internal/trajectory/trajectory.go
package trajectory

import "fmt"

// Trajectory is an immutable snapshot of a car's plan: where it is, when it
// is, and the turnpoints it has committed to visit in order. Every operation
// returns a new value; a *Trajectory is never modified after construction,
// which is what lets cars publish it through an atomic pointer.
type Trajectory struct {
	idle     IdlePolicy
	time     int64
	floor    int
	timeLeft int64
	points   []int
}

// New returns an empty trajectory whose car stays put when idle.
func New(time int64, floor int) *Trajectory {
	return WithPolicy(Stay{}, time, floor)
}

// NewHoming returns an empty trajectory whose car drifts back to home when idle.
func NewHoming(home int, time int64, floor int) *Trajectory {
	return WithPolicy(Home{Floor: home}, time, floor)
}

// WithPolicy returns an empty trajectory with an explicit idle policy.
func WithPolicy(p IdlePolicy, time int64, floor int) *Trajectory {
	if p == nil {
		p = Stay{}
	}
	return &Trajectory{idle: p, time: time, floor: floor}
}

func (t *Trajectory) Time() int64        { return t.time }
func (t *Trajectory) Floor() int         { return t.floor }
func (t *Trajectory) Policy() IdlePolicy { return t.idle }

// TimeLeft is the number of ticks needed to visit every remaining turnpoint.
func (t *Trajectory) TimeLeft() int64 { return t.timeLeft }

// EndTime is the absolute tick at which the last turnpoint is reached.
func (t *Trajectory) EndTime() int64 { return t.time + t.timeLeft }

// Turnpoints returns a copy of the remaining stops.
func (t *Trajectory) Turnpoints() []int {
	out := make([]int, len(t.points))
	copy(out, t.points)
	return out
}

// EndFloor is the last committed turnpoint, or the current floor without one.
func (t *Trajectory) EndFloor() int {
	if len(t.points) == 0 {
		return t.floor
	}
	return t.points[len(t.points)-1]
}

func (t *Trajectory) Busy() bool           { return t.timeLeft > 0 }
func (t *Trajectory) TimeUntilIdle() int64 { return t.idle.TimeUntilIdle(t) }
func (t *Trajectory) Moving() bool         { return t.TimeUntilIdle() > 0 }
func (t *Trajectory) Idle() bool           { return !t.Moving() }

// ShouldStop reports whether the car is standing on its next turnpoint.
func (t *Trajectory) ShouldStop() bool {
	return len(t.points) > 0 && t.points[0] == t.floor
}

// pending drops head turnpoints that equal the current floor. The result may
// alias t.points and must not be written to.
func (t *Trajectory) pending() []int {
	p := t.points
	for len(p) > 0 && p[0] == t.floor {
		p = p[1:]
	}
	return p
}

// NextFloor is the floor the car occupies after the next step.
func (t *Trajectory) NextFloor() int {
	if p := t.pending(); len(p) > 0 {
		return t.floor + compare(p[0], t.floor)
	}
	return t.floor + t.idle.Drift(t)
}

// Step advances the trajectory by one tick.
func (t *Trajectory) Step() *Trajectory {
	next := *t
	next.points = t.pending()
	next.floor = next.NextFloor()
	next.time++
	if next.timeLeft > 0 {
		next.timeLeft--
	}
	return &next
}

// Extend appends start and end unconditionally.
func (t *Trajectory) Extend(start, end int) *Trajectory {
	next := *t
	next.points = append(t.points[:len(t.points):len(t.points)], start, end)
	next.timeLeft += abs(start-t.EndFloor()) + abs(end-start)
	return &next
}

// InsertSegment splices [start,end] into the existing turnpoints. It fails when
// there are no turnpoints, when start is the current floor, or when no
// directionally consistent position exists. An end past the final turnpoint is
// appended and only the overhang is added to the remaining time.
func (t *Trajectory) InsertSegment(start, end int) (*Trajectory, bool) {
	if len(t.points) == 0 {
		return nil, false
	}
	spliced, ok := Splice(t.floor, t.points, start, end, false)
	if !ok {
		return nil, false
	}
	next := *t
	next.points = spliced
	if last, prev := spliced[len(spliced)-1], t.EndFloor(); last != prev {
		next.timeLeft += abs(last - prev)
	}
	return &next, true
}

// Augment splices the segment when possible and extends otherwise.
func (t *Trajectory) Augment(start, end int) *Trajectory {
	if next, ok := t.InsertSegment(start, end); ok {
		return next
	}
	return t.Extend(start, end)
}

// AugmentFrom is Augment restricted to pickups away from the current floor.
func (t *Trajectory) AugmentFrom(start, end int) (*Trajectory, bool) {
	if start == t.floor {
		return nil, false
	}
	return t.Augment(start, end), true
}

// Includes reports whether the segment can be served without extra travel.
func (t *Trajectory) Includes(start, end int) bool {
	next, ok := t.InsertSegment(start, end)
	return ok && next.timeLeft == t.timeLeft
}

func (t *Trajectory) String() string {
	return fmt.Sprintf("trajectory{t=%d floor=%d left=%d points=%v idle=%s}",
		t.time, t.floor, t.timeLeft, t.points, t.idle)
}
