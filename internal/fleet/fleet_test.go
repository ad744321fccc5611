// v0
// internal/fleet/fleet_test.go
package fleet

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/patonw/elevator-sim/internal/bus"
	"github.com/patonw/elevator-sim/internal/deferred"
	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/trajectory"
)

type fired struct {
	topic event.Topic
	ev    event.Event
}

type recordingBus struct {
	mu    sync.Mutex
	fired []fired
}

func (r *recordingBus) Fire(topic event.Topic, ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, fired{topic, ev})
}
func (r *recordingBus) Attach(event.Reactor, ...event.Topic) func() { return func() {} }
func (r *recordingBus) Health() event.Health                        { return event.Good }

func (r *recordingBus) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Kind, 0, len(r.fired))
	for _, f := range r.fired {
		out = append(out, f.ev.Kind())
	}
	return out
}

func (r *recordingBus) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = nil
}

type nopScheduler struct{ bound Fleet }

func (n *nopScheduler) React(event.Bus, event.Event) {}
func (n *nopScheduler) Bind(f Fleet)                 { n.bound = f }

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		return Config{
			Floors:    10,
			Elevators: 2,
			Bus:       bus.NewPartitioned(bus.Config{}),
			Queue:     deferred.New(nil),
			Scheduler: &nopScheduler{},
		}
	}
	cases := map[string]func(*Config){
		"no floors":         func(c *Config) { c.Floors = 0 },
		"no elevators":      func(c *Config) { c.Elevators = -1 },
		"no bus":            func(c *Config) { c.Bus = nil },
		"no scheduler":      func(c *Config) { c.Scheduler = nil },
		"no queue":          func(c *Config) { c.Queue = nil },
		"short home floors": func(c *Config) { c.HomeFloors = []int{1} },
		"home out of range": func(c *Config) { c.HomeFloors = []int{1, 10} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	sched := &nopScheduler{}
	cfg := valid()
	cfg.Scheduler = sched
	if _, err := New(cfg); err != nil {
		t.Fatalf("new: %v", err)
	}
	if sched.bound == nil || len(sched.bound.Paths()) != 2 {
		t.Fatalf("scheduler not bound to the fleet")
	}
}

func TestHomingStart(t *testing.T) {
	b, err := New(Config{
		Floors:     30,
		Elevators:  3,
		HomeFloors: []int{5, 10, 15},
		Bus:        bus.NewPartitioned(bus.Config{}),
		Queue:      deferred.New(nil),
		Scheduler:  &nopScheduler{},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i, home := range []int{5, 10, 15} {
		p := b.Elevator(i).Path()
		if p.Floor() != home || p.Policy() != (trajectory.Home{Floor: home}) {
			t.Fatalf("elevator %d: unexpected start %v", i, p)
		}
	}
}

func TestTickStepsAndAnnouncesArrival(t *testing.T) {
	rb := &recordingBus{}
	e := NewElevator(0, 10, trajectory.New(0, 0).Extend(1, 3), nil)

	e.React(rb, event.ClockTick{Value: 1})
	if e.Path().Floor() != 1 {
		t.Fatalf("expected floor 1, got %d", e.Path().Floor())
	}
	if got := rb.kinds(); !slices.Equal(got, []event.Kind{event.KindElevatorArrived}) {
		t.Fatalf("expected arrival, got %v", got)
	}
	arrived := rb.fired[0].ev.(event.ElevatorArrived)
	if arrived.Floor != 1 || arrived.Clock != 1 || rb.fired[0].topic != event.Elevator {
		t.Fatalf("unexpected arrival %+v", arrived)
	}

	rb.reset()
	e.React(rb, event.ClockTick{Value: 1})
	if e.Path().Time() != 1 || len(rb.kinds()) != 0 {
		t.Fatalf("duplicate tick was not ignored")
	}

	e.React(rb, event.ClockTick{Value: 2})
	e.React(rb, event.ClockTick{Value: 3})
	if got := rb.kinds(); !slices.Equal(got, []event.Kind{event.KindElevatorArrived, event.KindElevatorIdle}) {
		t.Fatalf("expected arrival then idle, got %v", got)
	}
}

func TestAssignWithoutToken(t *testing.T) {
	rb := &recordingBus{}
	e := NewElevator(1, 20, nil, nil)
	p := event.NewPassenger(12)

	e.React(rb, event.AssignRequest{Passenger: p, Floor: 4, Elevator: 0})
	if len(rb.kinds()) != 0 {
		t.Fatalf("request for another car was handled")
	}

	e.React(rb, event.AssignRequest{Passenger: p, Floor: 4, Elevator: 1})
	if got := rb.kinds(); !slices.Equal(got, []event.Kind{event.KindRequestAccepted}) {
		t.Fatalf("expected acceptance, got %v", got)
	}
	if !slices.Equal(e.Path().Turnpoints(), []int{4, 12}) || e.Path().TimeLeft() != 12 {
		t.Fatalf("unexpected path %v", e.Path())
	}
}

func TestAssignFromCurrentFloorStopsImmediately(t *testing.T) {
	rb := &recordingBus{}
	e := NewElevator(0, 20, trajectory.New(5, 3), nil)
	e.React(rb, event.AssignRequest{Passenger: event.NewPassenger(8), Floor: 3, Elevator: 0})
	if got := rb.kinds(); !slices.Equal(got, []event.Kind{event.KindRequestAccepted, event.KindElevatorArrived}) {
		t.Fatalf("expected acceptance and arrival, got %v", got)
	}
}

func TestStaleTokenIsRejected(t *testing.T) {
	rb := &recordingBus{}
	e := NewElevator(0, 20, nil, nil)
	first := event.AssignRequest{Passenger: event.NewPassenger(10), Floor: 5, Elevator: 0, Token: &event.Token{TimeLeft: 10, EndTime: 10}}
	second := event.AssignRequest{Passenger: event.NewPassenger(8), Floor: 3, Elevator: 0, Token: &event.Token{TimeLeft: 8, EndTime: 8}}

	e.React(rb, first)
	e.React(rb, second)
	got := rb.kinds()
	if !slices.Equal(got, []event.Kind{event.KindRequestAccepted, event.KindRequestRejected}) {
		t.Fatalf("expected accept then reject, got %v", got)
	}
	if e.Path().TimeLeft() != 10 {
		t.Fatalf("rejected request changed the path: %v", e.Path())
	}
}

func TestLoadAndDrop(t *testing.T) {
	rb := &recordingBus{}
	e := NewElevator(2, 10, nil, nil)
	p := event.NewPassenger(7)

	e.React(rb, event.LoadPassenger{Passenger: p, Floor: 1, Elevator: 2})
	e.React(rb, event.LoadPassenger{Passenger: event.NewPassenger(99), Floor: 1, Elevator: 2})
	if len(e.Riders()) != 1 {
		t.Fatalf("expected 1 rider, got %d", len(e.Riders()))
	}

	e.React(rb, event.ElevatorArrived{Elevator: 2, Floor: 6})
	if len(rb.kinds()) != 0 {
		t.Fatalf("dropped at the wrong floor")
	}
	e.React(rb, event.ElevatorArrived{Elevator: 2, Floor: 7})
	if len(rb.fired) != 1 {
		t.Fatalf("expected one drop, got %v", rb.kinds())
	}
	drop := rb.fired[0].ev.(event.DropPassenger)
	if drop.Passenger != p || drop.Floor != 7 || rb.fired[0].topic != event.Riders {
		t.Fatalf("unexpected drop %+v", drop)
	}
	if len(e.Riders()) != 0 {
		t.Fatalf("riders not cleared")
	}
}

// Assignments and ticks race on the path register. Every request is accepted
// exactly once, and the committed swaps chain from the start path to the
// final one, each equal to applying its cause serially to the one before.
func TestConcurrentAssignmentsAndTicksMatchSerialReplay(t *testing.T) {
	rb := &recordingBus{}
	start := trajectory.New(0, 0)
	e := NewElevator(0, 100, start, nil)

	type swap struct {
		next  *trajectory.Trajectory
		cause event.Event
	}
	var (
		mu    sync.Mutex
		swaps = make(map[*trajectory.Trajectory]swap)
	)
	e.committed = func(old, next *trajectory.Trajectory, cause event.Event) {
		mu.Lock()
		defer mu.Unlock()
		if _, dup := swaps[old]; dup {
			t.Errorf("path %v replaced twice", old)
		}
		swaps[old] = swap{next: next, cause: cause}
	}

	const n, ticks = 64, 40
	reqs := make([]event.AssignRequest, n)
	for i := range reqs {
		reqs[i] = event.AssignRequest{Passenger: event.NewPassenger(50 + i%40), Floor: 1 + i%40, Elevator: 0}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= ticks; i++ {
			e.React(rb, event.ClockTick{Value: i})
		}
	}()
	for _, r := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.React(rb, r)
		}()
	}
	wg.Wait()

	accepted := 0
	for _, k := range rb.kinds() {
		switch k {
		case event.KindRequestAccepted:
			accepted++
		case event.KindRequestRejected:
			t.Fatalf("request without token was rejected")
		}
	}
	if accepted != n {
		t.Fatalf("expected %d acceptances, got %d", n, accepted)
	}

	final := e.Path()
	replay, cur := start, start
	assigned, stepped := 0, 0
	for cur != final {
		s, ok := swaps[cur]
		if !ok {
			t.Fatalf("commit chain broken after %d swaps", assigned+stepped)
		}
		switch cause := s.cause.(type) {
		case event.ClockTick:
			replay = replay.Step()
			stepped++
		case event.AssignRequest:
			replay = replay.Augment(cause.Floor, cause.Passenger.Destination)
			assigned++
		default:
			t.Fatalf("unexpected cause %T", cause)
		}
		if !sameTrajectory(replay, s.next) {
			t.Fatalf("swap %d diverges from serial replay: got %v, replay %v", assigned+stepped, s.next, replay)
		}
		cur = s.next
	}
	if assigned != n || stepped != ticks {
		t.Fatalf("expected %d assignments and %d ticks in the chain, got %d and %d", n, ticks, assigned, stepped)
	}
	if len(swaps) != assigned+stepped {
		t.Fatalf("%d swaps recorded but only %d chained", len(swaps), assigned+stepped)
	}
	if !slices.Equal(replay.Turnpoints(), final.Turnpoints()) || replay.TimeLeft() != final.TimeLeft() {
		t.Fatalf("final path %v differs from serial replay %v", final, replay)
	}
}

func sameTrajectory(a, b *trajectory.Trajectory) bool {
	return a.Time() == b.Time() && a.Floor() == b.Floor() && a.TimeLeft() == b.TimeLeft() &&
		slices.Equal(a.Turnpoints(), b.Turnpoints())
}

func TestFloorLoadsOnTimelyArrival(t *testing.T) {
	rb := &recordingBus{}
	f := NewFloor(3, 2, nil)
	p := event.NewPassenger(15)

	f.React(rb, event.ClockTick{Value: 10})
	f.React(rb, event.RequestAccepted{Request: event.AssignRequest{Passenger: p, Floor: 3, Elevator: 1}})
	f.React(rb, event.RequestAccepted{Request: event.AssignRequest{Passenger: event.NewPassenger(1), Floor: 4, Elevator: 1}})
	if len(f.Waiting()) != 1 {
		t.Fatalf("expected 1 waiting, got %d", len(f.Waiting()))
	}

	f.React(rb, event.ElevatorArrived{Elevator: 0, Floor: 3, Clock: 10})
	f.React(rb, event.ElevatorArrived{Elevator: 1, Floor: 3, Clock: 10})
	if got := rb.kinds(); !slices.Equal(got, []event.Kind{event.KindPassengerWaiting, event.KindLoadPassenger}) {
		t.Fatalf("expected waiting then load, got %v", got)
	}
	load := rb.fired[1].ev.(event.LoadPassenger)
	if load.Passenger != p || load.Elevator != 1 || load.Floor != 3 {
		t.Fatalf("unexpected load %+v", load)
	}
	if len(f.Waiting()) != 0 {
		t.Fatalf("waiting list not cleared")
	}
}

func TestFloorReportsMissedConnection(t *testing.T) {
	rb := &recordingBus{}
	f := NewFloor(3, 1, nil)
	p := event.NewPassenger(15)

	f.React(rb, event.RequestAccepted{Request: event.AssignRequest{Passenger: p, Floor: 3, Elevator: 0}})
	f.React(rb, event.ClockTick{Value: 12})
	f.React(rb, event.ClockTick{Value: 11})
	if f.Clock() != 12 {
		t.Fatalf("floor clock went backwards: %d", f.Clock())
	}
	f.React(rb, event.ElevatorArrived{Elevator: 0, Floor: 3, Clock: 11})

	got := rb.kinds()
	if !slices.Equal(got, []event.Kind{event.KindPassengerWaiting, event.KindMissedConnection}) {
		t.Fatalf("expected waiting then missed connection, got %v", got)
	}
	if len(f.Waiting()) != 0 {
		t.Fatalf("waiting list not cleared")
	}
}
