// v0
// internal/fleet/elevator.go
package fleet

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/trajectory"
)

// Elevator is one car. Its trajectory is the only shared mutable state and
// is replaced by compare-and-swap; riders are guarded by a separate mutex.
type Elevator struct {
	id   int
	path atomic.Pointer[trajectory.Trajectory]

	mu     sync.Mutex
	riders []map[uuid.UUID]event.Passenger // indexed by destination floor

	// committed, when set, sees every successful swap of the path register
	// together with the event that caused it.
	committed func(old, next *trajectory.Trajectory, cause event.Event)

	log *slog.Logger
}

// NewElevator creates car id serving floors [0, floors) starting on start.
func NewElevator(id, floors int, start *trajectory.Trajectory, log *slog.Logger) *Elevator {
	if log == nil {
		log = slog.Default()
	}
	if start == nil {
		start = trajectory.New(0, 0)
	}
	e := &Elevator{
		id:     id,
		riders: make([]map[uuid.UUID]event.Passenger, floors),
		log:    log.With(slog.Int("elevator", id)),
	}
	for i := range e.riders {
		e.riders[i] = make(map[uuid.UUID]event.Passenger)
	}
	e.path.Store(start)
	return e
}

func (e *Elevator) ID() int { return e.id }

// Path returns the current trajectory snapshot.
func (e *Elevator) Path() *trajectory.Trajectory { return e.path.Load() }

// Riders lists passengers on board.
func (e *Elevator) Riders() []event.Passenger {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []event.Passenger
	for _, set := range e.riders {
		for _, p := range set {
			out = append(out, p)
		}
	}
	return out
}

func (e *Elevator) React(b event.Bus, ev event.Event) {
	switch ev := ev.(type) {
	case event.ClockTick:
		e.onTick(b, ev)
	case event.AssignRequest:
		if ev.Elevator == e.id {
			e.onAssign(b, ev)
		}
	case event.ElevatorArrived:
		if ev.Elevator == e.id {
			e.onArrived(b, ev)
		}
	case event.LoadPassenger:
		if ev.Elevator == e.id {
			e.onLoad(ev)
		}
	}
}

func (e *Elevator) onTick(b event.Bus, tick event.ClockTick) {
	for {
		old := e.path.Load()
		if old.Time() >= tick.Value {
			e.log.Warn("spurious_clock_tick", slog.Int64("tick", tick.Value), slog.Int64("path_time", old.Time()))
			return
		}
		next := old.Step()
		if !e.path.CompareAndSwap(old, next) {
			continue
		}
		e.commit(old, next, tick)
		e.announceStop(b, next)
		if old.Moving() && next.Idle() {
			b.Fire(event.Elevator, event.ElevatorIdle{Elevator: e.id, Floor: next.Floor(), Clock: next.Time()})
		}
		return
	}
}

// onAssign commits the request with an optimistic retry loop. A token that no
// longer matches the candidate's completion time means the scheduler decided
// on a stale baseline; the request is rejected rather than retried here.
func (e *Elevator) onAssign(b event.Bus, req event.AssignRequest) {
	dest := req.Passenger.Destination
	for attempt := 1; ; attempt++ {
		old := e.path.Load()
		next := old.Augment(req.Floor, dest)

		if req.Token != nil && req.Token.EndTime != next.EndTime() {
			e.log.Debug("assignment_rejected",
				slog.String("passenger", req.Passenger.ID.String()),
				slog.Int64("token_end", req.Token.EndTime),
				slog.Int64("candidate_end", next.EndTime()))
			b.Fire(event.Scheduling, event.RequestRejected{Request: req})
			return
		}
		if e.path.CompareAndSwap(old, next) {
			e.commit(old, next, req)
			e.log.Debug("assignment_accepted",
				slog.String("passenger", req.Passenger.ID.String()),
				slog.Int("floor", req.Floor),
				slog.Int("attempts", attempt))
			b.Fire(event.Scheduling, event.RequestAccepted{Request: req})
			e.announceStop(b, next)
			return
		}
	}
}

func (e *Elevator) commit(old, next *trajectory.Trajectory, cause event.Event) {
	if e.committed != nil {
		e.committed(old, next, cause)
	}
}

func (e *Elevator) announceStop(b event.Bus, t *trajectory.Trajectory) {
	if t.ShouldStop() {
		b.Fire(event.Elevator, event.ElevatorArrived{Elevator: e.id, Floor: t.Floor(), Clock: t.Time()})
	}
}

func (e *Elevator) onArrived(b event.Bus, arrived event.ElevatorArrived) {
	if arrived.Floor < 0 || arrived.Floor >= len(e.riders) {
		e.log.Warn("arrival_outside_building", slog.Int("floor", arrived.Floor))
		return
	}
	e.mu.Lock()
	set := e.riders[arrived.Floor]
	e.riders[arrived.Floor] = make(map[uuid.UUID]event.Passenger)
	e.mu.Unlock()

	for _, p := range set {
		b.Fire(event.Riders, event.DropPassenger{Passenger: p, Floor: arrived.Floor, Elevator: e.id})
	}
}

func (e *Elevator) onLoad(load event.LoadPassenger) {
	dest := load.Passenger.Destination
	if dest < 0 || dest >= len(e.riders) {
		e.log.Warn("destination_outside_building", slog.Int("destination", dest), slog.String("passenger", load.Passenger.ID.String()))
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.riders[dest][load.Passenger.ID] = load.Passenger
}
