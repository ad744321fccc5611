// v0
// internal/bus/subscribers.go
package bus

import (
	"slices"
	"sync/atomic"

	"github.com/patonw/elevator-sim/internal/event"
)

type subscriber struct {
	id      uint64
	reactor event.Reactor
}

// subscriberSet is a copy-on-write reactor list. Values published through
// the atomic pointer are never modified, so dispatch can read them without
// locking while attach and detach race.
type subscriberSet struct {
	head   atomic.Pointer[[]subscriber]
	nextID atomic.Uint64
}

func newSubscriberSet() *subscriberSet {
	s := &subscriberSet{}
	s.head.Store(&[]subscriber{})
	return s
}

func (s *subscriberSet) add(r event.Reactor) uint64 {
	id := s.nextID.Add(1)
	for {
		old := s.head.Load()
		next := append(slices.Clip(*old), subscriber{id: id, reactor: r})
		if s.head.CompareAndSwap(old, &next) {
			return id
		}
	}
}

func (s *subscriberSet) remove(id uint64) {
	for {
		old := s.head.Load()
		idx := slices.IndexFunc(*old, func(sub subscriber) bool { return sub.id == id })
		if idx < 0 {
			return
		}
		next := slices.Delete(slices.Clone(*old), idx, idx+1)
		if s.head.CompareAndSwap(old, &next) {
			return
		}
	}
}

// snapshot returns a private copy that the caller may reorder.
func (s *subscriberSet) snapshot() []subscriber {
	return slices.Clone(*s.head.Load())
}

func (s *subscriberSet) len() int { return len(*s.head.Load()) }
