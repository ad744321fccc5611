// v0
// internal/retry/retry.go
package retry

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/patonw/elevator-sim/internal/event"
)

// Rejections resubmits rejected assignments to the scheduler after a random
// delay in [0, Jitter). There is no retry ceiling: a request that can never
// be placed keeps cycling.
type Rejections struct {
	jitter time.Duration
	log    *slog.Logger
	// after defers f by d. Swapped out in tests.
	after func(d time.Duration, f func())
}

// NewRejections returns a rejection reactor. A zero jitter resubmits inline.
func NewRejections(jitter time.Duration, log *slog.Logger) *Rejections {
	if log == nil {
		log = slog.Default()
	}
	return &Rejections{
		jitter: jitter,
		log:    log,
		after:  func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

func (r *Rejections) React(b event.Bus, ev event.Event) {
	rejected, ok := ev.(event.RequestRejected)
	if !ok {
		return
	}
	req := rejected.Request
	retry := event.ScheduleRequest{Passenger: req.Passenger, Floor: req.Floor}

	delay := r.delay()
	r.log.Debug("assignment_retry",
		slog.String("passenger", req.Passenger.ID.String()),
		slog.Int("floor", req.Floor),
		slog.Int("elevator", req.Elevator),
		slog.Duration("delay", delay))
	if delay <= 0 {
		b.Fire(event.Scheduling, retry)
		return
	}
	r.after(delay, func() { b.Fire(event.Scheduling, retry) })
}

func (r *Rejections) delay() time.Duration {
	if r.jitter <= 0 {
		return 0
	}
	return rand.N(r.jitter)
}

// Reschedules puts passengers who missed their car back in front of the
// scheduler straight away.
type Reschedules struct {
	log *slog.Logger
}

func NewReschedules(log *slog.Logger) *Reschedules {
	if log == nil {
		log = slog.Default()
	}
	return &Reschedules{log: log}
}

func (r *Reschedules) React(b event.Bus, ev event.Event) {
	missed, ok := ev.(event.MissedConnection)
	if !ok {
		return
	}
	r.log.Info("missed_connection_rescheduled",
		slog.String("passenger", missed.Passenger.ID.String()),
		slog.Int("floor", missed.Floor),
		slog.Int("elevator", missed.Elevator))
	b.Fire(event.Scheduling, event.ScheduleRequest{Passenger: missed.Passenger, Floor: missed.Floor})
}
