// v0
// internal/fleet/building.go
package fleet

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patonw/elevator-sim/internal/deferred"
	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/retry"
	"github.com/patonw/elevator-sim/internal/trajectory"
)

// ErrInvalidConfig wraps every construction failure.
var ErrInvalidConfig = errors.New("invalid fleet configuration")

// Fleet is the read-only view schedulers plan against.
type Fleet interface {
	// Paths returns one trajectory snapshot per car, indexed by car id.
	Paths() []*trajectory.Trajectory
}

// Scheduler turns ScheduleRequest events into AssignRequest commands.
type Scheduler interface {
	event.Reactor
	Bind(f Fleet)
}

// StartFunc yields the initial trajectory of car id.
type StartFunc func(id int) *trajectory.Trajectory

// Ground starts every car idle on floor 0.
func Ground() StartFunc {
	return func(int) *trajectory.Trajectory { return trajectory.New(0, 0) }
}

// Homing starts car i on homes[i] and returns it there whenever it idles.
func Homing(homes []int) StartFunc {
	return func(id int) *trajectory.Trajectory {
		return trajectory.NewHoming(homes[id], 0, homes[id])
	}
}

// Config describes a building. Bus, Queue and Scheduler are required.
type Config struct {
	Floors    int
	Elevators int
	// HomeFloors selects the homing start when non-empty; one entry per car.
	HomeFloors []int
	Bus        event.Bus
	Queue      *deferred.Queue
	Scheduler  Scheduler
	// RetryJitter bounds the delay before a rejected request is resubmitted.
	RetryJitter time.Duration
	// Reactors are extra subscribers attached to every topic.
	Reactors []event.Reactor
	Logger   *slog.Logger
}

func (c Config) validate() error {
	switch {
	case c.Floors <= 0:
		return fmt.Errorf("%w: floors must be positive, got %d", ErrInvalidConfig, c.Floors)
	case c.Elevators <= 0:
		return fmt.Errorf("%w: elevators must be positive, got %d", ErrInvalidConfig, c.Elevators)
	case c.Bus == nil:
		return fmt.Errorf("%w: event bus not set", ErrInvalidConfig)
	case c.Scheduler == nil:
		return fmt.Errorf("%w: scheduler not set", ErrInvalidConfig)
	case c.Queue == nil:
		return fmt.Errorf("%w: event queue not set", ErrInvalidConfig)
	case c.RetryJitter < 0:
		return fmt.Errorf("%w: retry jitter must not be negative", ErrInvalidConfig)
	}
	if len(c.HomeFloors) == 0 {
		return nil
	}
	if len(c.HomeFloors) < c.Elevators {
		return fmt.Errorf("%w: %d home floors for %d elevators", ErrInvalidConfig, len(c.HomeFloors), c.Elevators)
	}
	for i, h := range c.HomeFloors[:c.Elevators] {
		if h < 0 || h >= c.Floors {
			return fmt.Errorf("%w: home floor %d of elevator %d outside [0,%d)", ErrInvalidConfig, h, i, c.Floors)
		}
	}
	return nil
}

// Building owns the floors and cars and has them subscribed to the bus.
type Building struct {
	floors    []*Floor
	elevators []*Elevator
	bus       event.Bus
	queue     *deferred.Queue
	scheduler Scheduler
}

// New validates cfg, creates floors and cars, and attaches everything to the bus.
func New(cfg Config) (*Building, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	start := Ground()
	if len(cfg.HomeFloors) > 0 {
		start = Homing(cfg.HomeFloors)
	}

	b := &Building{bus: cfg.Bus, queue: cfg.Queue, scheduler: cfg.Scheduler}
	bus := cfg.Bus
	bus.Attach(cfg.Queue)
	bus.Attach(cfg.Scheduler, event.Default, event.Scheduling)
	bus.Attach(retry.NewRejections(cfg.RetryJitter, log), event.Scheduling)
	bus.Attach(retry.NewReschedules(log), event.Riders)
	for _, r := range cfg.Reactors {
		bus.Attach(r)
	}

	for i := 0; i < cfg.Floors; i++ {
		f := NewFloor(i, cfg.Elevators, log)
		b.floors = append(b.floors, f)
		bus.Attach(f, event.Default, event.Scheduling, event.Elevator)
	}
	for i := 0; i < cfg.Elevators; i++ {
		e := NewElevator(i, cfg.Floors, start(i), log)
		b.elevators = append(b.elevators, e)
		bus.Attach(e)
	}
	cfg.Scheduler.Bind(b)

	log.Info("building_ready", slog.Int("floors", cfg.Floors), slog.Int("elevators", cfg.Elevators),
		slog.Bool("homing", len(cfg.HomeFloors) > 0))
	return b, nil
}

func (b *Building) NumFloors() int           { return len(b.floors) }
func (b *Building) NumElevators() int        { return len(b.elevators) }
func (b *Building) Floor(i int) *Floor       { return b.floors[i] }
func (b *Building) Elevator(i int) *Elevator { return b.elevators[i] }
func (b *Building) Bus() event.Bus           { return b.bus }
func (b *Building) Queue() *deferred.Queue   { return b.queue }
func (b *Building) Scheduler() Scheduler     { return b.scheduler }

// Paths implements Fleet.
func (b *Building) Paths() []*trajectory.Trajectory {
	out := make([]*trajectory.Trajectory, len(b.elevators))
	for i, e := range b.elevators {
		out[i] = e.Path()
	}
	return out
}
