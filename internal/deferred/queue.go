// v0
// internal/deferred/queue.go
package deferred

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/patonw/elevator-sim/internal/event"
)

// ErrScheduledInPast is returned when an entry targets a tick the queue has
// already passed.
var ErrScheduledInPast = errors.New("cannot schedule an event in the past")

type entry struct {
	seq   uint64
	time  int64
	topic event.Topic
	ev    event.Event
}

type entries []entry

func (e entries) Len() int { return len(e) }
func (e entries) Less(i, j int) bool {
	if e[i].time != e[j].time {
		return e[i].time < e[j].time
	}
	return e[i].seq < e[j].seq
}
func (e entries) Swap(i, j int) { e[i], e[j] = e[j], e[i] }
func (e *entries) Push(x any)   { *e = append(*e, x.(entry)) }
func (e *entries) Pop() any {
	old := *e
	last := old[len(old)-1]
	*e = old[:len(old)-1]
	return last
}

// Queue holds events to fire once the clock reaches their tick. It reacts to
// ClockTick on whatever bus it is attached to and fires due entries, in
// (time, insertion) order, back onto that bus.
type Queue struct {
	mu      sync.Mutex
	clock   int64
	seq     uint64
	pending entries
	log     *slog.Logger
}

func New(log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{log: log}
}

// Clock is the most recent tick observed.
func (q *Queue) Clock() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clock
}

// Pending reports how many entries are waiting.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ScheduleAt registers ev to be fired on topic at tick time or later.
func (q *Queue) ScheduleAt(time int64, topic event.Topic, ev event.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if time < q.clock {
		q.log.Warn("deferred_event_in_past", slog.Int64("at", time), slog.Int64("clock", q.clock), slog.String("kind", string(ev.Kind())))
		return fmt.Errorf("%w: tick %d before clock %d", ErrScheduledInPast, time, q.clock)
	}
	heap.Push(&q.pending, entry{seq: q.seq, time: time, topic: topic, ev: ev})
	q.seq++
	return nil
}

// React advances the clock on ClockTick and fires every entry now due.
func (q *Queue) React(b event.Bus, ev event.Event) {
	tick, ok := ev.(event.ClockTick)
	if !ok {
		return
	}
	for _, due := range q.advance(tick.Value) {
		b.Fire(due.topic, due.ev)
	}
}

// advance pops due entries under the lock; firing happens after release so a
// blocked partition cannot stall ScheduleAt callers.
func (q *Queue) advance(now int64) []entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if now > q.clock {
		q.clock = now
	}
	var due []entry
	for len(q.pending) > 0 && q.pending[0].time <= now {
		due = append(due, heap.Pop(&q.pending).(entry))
	}
	return due
}
