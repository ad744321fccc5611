// v0
// internal/bus/observer.go
package bus

import "github.com/patonw/elevator-sim/internal/event"

// Observer receives bus instrumentation callbacks. Implementations must be
// safe for concurrent use.
type Observer interface {
	Fired(topic event.Topic)
	Dispatched(topic event.Topic)
	Dropped(topic event.Topic)
	WorkerStarted(topic event.Topic)
	WorkerStopped(topic event.Topic, handled int)
}

type nopObserver struct{}

func (nopObserver) Fired(event.Topic)              {}
func (nopObserver) Dispatched(event.Topic)         {}
func (nopObserver) Dropped(event.Topic)            {}
func (nopObserver) WorkerStarted(event.Topic)      {}
func (nopObserver) WorkerStopped(event.Topic, int) {}
