// v0
// internal/scheduling/roundrobin.go
package scheduling

import (
	"log/slog"
	"sync/atomic"

	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/fleet"
)

// RoundRobin hands requests to cars in turn, ignoring load. Assignments
// carry no token, so cars always accept them.
type RoundRobin struct {
	fleet   fleet.Fleet
	counter atomic.Uint64
	log     *slog.Logger
}

func NewRoundRobin(log *slog.Logger) *RoundRobin {
	if log == nil {
		log = slog.Default()
	}
	return &RoundRobin{log: log}
}

func (r *RoundRobin) Bind(f fleet.Fleet) { r.fleet = f }

func (r *RoundRobin) React(b event.Bus, ev event.Event) {
	req, ok := ev.(event.ScheduleRequest)
	if !ok {
		return
	}
	if r.fleet == nil {
		r.log.Warn("scheduler_unbound", slog.String("passenger", req.Passenger.ID.String()))
		return
	}
	n := uint64(len(r.fleet.Paths()))
	if n == 0 {
		return
	}
	assignee := int((r.counter.Add(1) - 1) % n)
	b.Fire(event.Scheduling, event.AssignRequest{Passenger: req.Passenger, Floor: req.Floor, Elevator: assignee})
}
