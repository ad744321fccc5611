// v0
// internal/fleet/floor.go
package fleet

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/patonw/elevator-sim/internal/event"
)

// Floor holds, per car, the passengers waiting to board it here.
type Floor struct {
	id    int
	clock atomic.Int64

	mu      sync.Mutex
	waiting []map[uuid.UUID]event.Passenger // indexed by elevator id

	log *slog.Logger
}

func NewFloor(id, elevators int, log *slog.Logger) *Floor {
	if log == nil {
		log = slog.Default()
	}
	f := &Floor{
		id:      id,
		waiting: make([]map[uuid.UUID]event.Passenger, elevators),
		log:     log.With(slog.Int("floor", id)),
	}
	for i := range f.waiting {
		f.waiting[i] = make(map[uuid.UUID]event.Passenger)
	}
	return f
}

func (f *Floor) ID() int { return f.id }

// Clock is the latest tick seen by this floor.
func (f *Floor) Clock() int64 { return f.clock.Load() }

// Waiting lists passengers waiting on this floor for any car.
func (f *Floor) Waiting() []event.Passenger {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []event.Passenger
	for _, set := range f.waiting {
		for _, p := range set {
			out = append(out, p)
		}
	}
	return out
}

func (f *Floor) React(b event.Bus, ev event.Event) {
	switch ev := ev.(type) {
	case event.ClockTick:
		f.observe(ev.Value)
	case event.RequestAccepted:
		if ev.Request.Floor == f.id {
			f.onAccepted(b, ev.Request)
		}
	case event.ElevatorArrived:
		if ev.Floor == f.id {
			f.onArrived(b, ev)
		}
	}
}

// observe keeps the clock monotonic when ticks are dispatched out of order.
func (f *Floor) observe(tick int64) {
	for {
		cur := f.clock.Load()
		if tick <= cur || f.clock.CompareAndSwap(cur, tick) {
			return
		}
	}
}

func (f *Floor) onAccepted(b event.Bus, req event.AssignRequest) {
	if req.Elevator < 0 || req.Elevator >= len(f.waiting) {
		f.log.Warn("assignment_unknown_elevator", slog.Int("elevator", req.Elevator))
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiting[req.Elevator][req.Passenger.ID] = req.Passenger
	b.Fire(event.Riders, event.PassengerWaiting{Passenger: req.Passenger, Floor: f.id, Elevator: req.Elevator})
}

// onArrived boards everyone waiting for the car, unless the floor has
// already seen a later tick, in which case the car is gone and each waiting
// passenger missed it.
func (f *Floor) onArrived(b event.Bus, arrived event.ElevatorArrived) {
	if arrived.Elevator < 0 || arrived.Elevator >= len(f.waiting) {
		f.log.Warn("arrival_unknown_elevator", slog.Int("elevator", arrived.Elevator))
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.waiting[arrived.Elevator]
	missed := arrived.Clock < f.clock.Load()
	for _, p := range set {
		if missed {
			b.Fire(event.Riders, event.MissedConnection{Passenger: p, Floor: f.id, Elevator: arrived.Elevator})
		} else {
			b.Fire(event.Riders, event.LoadPassenger{Passenger: p, Floor: f.id, Elevator: arrived.Elevator})
		}
	}
	if missed && len(set) > 0 {
		f.log.Info("missed_connection", slog.Int("elevator", arrived.Elevator), slog.Int("passengers", len(set)),
			slog.Int64("arrival", arrived.Clock), slog.Int64("clock", f.clock.Load()))
	}
	f.waiting[arrived.Elevator] = make(map[uuid.UUID]event.Passenger)
}
