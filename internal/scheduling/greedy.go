// v0
// internal/scheduling/greedy.go
package scheduling

import (
	"log/slog"

	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/fleet"
	"github.com/patonw/elevator-sim/internal/trajectory"
)

// Strategy selects which cars greedy scheduling considers.
type Strategy int

const (
	// MinIdle augments every car not standing on the pickup floor and picks
	// the one that becomes idle soonest. Flock is used when every car is
	// standing on the pickup floor.
	MinIdle Strategy = iota
	// InPathFirst only considers cars that can serve the request without
	// extra travel, and falls back to MinIdle when there are none.
	InPathFirst
	// Flock augments every car unconditionally.
	Flock
)

func (s Strategy) String() string {
	switch s {
	case InPathFirst:
		return KindInPathFirst
	case Flock:
		return KindFlock
	}
	return KindGreedy
}

// Greedy minimises the time until the chosen car goes idle. The observed
// remaining and completion times travel with the assignment as an
// optimistic token so the car can refuse a plan made on a stale path.
type Greedy struct {
	strategy Strategy
	fleet    fleet.Fleet
	log      *slog.Logger
}

func NewGreedy(s Strategy, log *slog.Logger) *Greedy {
	if log == nil {
		log = slog.Default()
	}
	return &Greedy{strategy: s, log: log.With(slog.String("scheduler", s.String()))}
}

func (g *Greedy) Bind(f fleet.Fleet) { g.fleet = f }

func (g *Greedy) React(b event.Bus, ev event.Event) {
	req, ok := ev.(event.ScheduleRequest)
	if !ok {
		return
	}
	if g.fleet == nil {
		g.log.Warn("scheduler_unbound", slog.String("passenger", req.Passenger.ID.String()))
		return
	}
	idx, best, ok := Choose(g.strategy, g.fleet.Paths(), req.Floor, req.Passenger.Destination)
	if !ok {
		g.log.Warn("no_candidate", slog.String("passenger", req.Passenger.ID.String()))
		return
	}
	b.Fire(event.Scheduling, event.AssignRequest{
		Passenger: req.Passenger,
		Floor:     req.Floor,
		Elevator:  idx,
		Token:     &event.Token{TimeLeft: best.TimeLeft(), EndTime: best.EndTime()},
	})
}

// Choose returns the index of the car to assign and its candidate path.
// Ties go to the lowest index.
func Choose(s Strategy, paths []*trajectory.Trajectory, start, dest int) (int, *trajectory.Trajectory, bool) {
	switch s {
	case InPathFirst:
		idx, best, ok := pick(paths, func(t *trajectory.Trajectory) (*trajectory.Trajectory, bool) {
			if !t.Includes(start, dest) {
				return nil, false
			}
			return t.InsertSegment(start, dest)
		})
		if ok {
			return idx, best, true
		}
		return Choose(MinIdle, paths, start, dest)
	case MinIdle:
		idx, best, ok := pick(paths, func(t *trajectory.Trajectory) (*trajectory.Trajectory, bool) {
			return t.AugmentFrom(start, dest)
		})
		if ok {
			return idx, best, true
		}
		return Choose(Flock, paths, start, dest)
	}
	return pick(paths, func(t *trajectory.Trajectory) (*trajectory.Trajectory, bool) {
		return t.Augment(start, dest), true
	})
}

func pick(paths []*trajectory.Trajectory, candidate func(*trajectory.Trajectory) (*trajectory.Trajectory, bool)) (int, *trajectory.Trajectory, bool) {
	bestIdx := -1
	var best *trajectory.Trajectory
	for i, p := range paths {
		next, ok := candidate(p)
		if !ok {
			continue
		}
		if best == nil || next.TimeUntilIdle() < best.TimeUntilIdle() {
			bestIdx, best = i, next
		}
	}
	return bestIdx, best, best != nil
}
