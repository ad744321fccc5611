// v0
// internal/event/bus.go
package event

// Bus routes events to reactors by topic.
type Bus interface {
	// Fire enqueues ev on topic. It may block under backpressure.
	Fire(topic Topic, ev Event)
	// Attach subscribes r to the given topics and returns a function that
	// removes the subscription again.
	Attach(r Reactor, topics ...Topic) (detach func())
	Health() Health
}

// Reactor receives events from a bus. Reactors may be invoked from several
// goroutines at once and must guard their own state.
type Reactor interface {
	React(b Bus, ev Event)
}

// ReactorFunc adapts a function to the Reactor interface.
type ReactorFunc func(b Bus, ev Event)

func (f ReactorFunc) React(b Bus, ev Event) { f(b, ev) }
