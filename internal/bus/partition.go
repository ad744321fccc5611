// v0
// internal/bus/partition.go
package bus

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/patonw/elevator-sim/internal/event"
)

const (
	// DefaultQueueDepth bounds each partition queue.
	DefaultQueueDepth = 1024
	// degradedBacklog is the backlog above which a partition reports DEGRADED.
	degradedBacklog = 16
)

// Shuffler reorders subscribers before an event is dispatched.
type Shuffler func(n int, swap func(i, j int))

// Partition owns one topic: a bounded FIFO queue and its subscribers.
// Events for any other topic are handed to the parent router.
type Partition struct {
	topic    event.Topic
	parent   event.Bus
	capacity int
	queue    chan event.Event
	subs     *subscriberSet
	shuffle  Shuffler
	log      *slog.Logger
	observer Observer

	done      chan struct{}
	closeOnce sync.Once

	// While draining, a full queue spills into overflow instead of blocking
	// the goroutine that is the only consumer.
	draining   atomic.Bool
	overflowMu sync.Mutex
	overflow   []event.Event
}

// NewPartition builds a standalone partition. A nil parent drops events
// fired for foreign topics.
func NewPartition(topic event.Topic, parent event.Bus, cfg Config) *Partition {
	cfg = cfg.withDefaults()
	return &Partition{
		topic:    topic,
		parent:   parent,
		capacity: cfg.QueueDepth,
		queue:    make(chan event.Event, cfg.QueueDepth),
		subs:     newSubscriberSet(),
		shuffle:  cfg.Shuffle,
		log:      cfg.Logger.With(slog.String("topic", topic.String())),
		observer: cfg.Observer,
		done:     make(chan struct{}),
	}
}

func (p *Partition) Topic() event.Topic { return p.topic }
func (p *Partition) Capacity() int      { return p.capacity }
func (p *Partition) Subscribers() int   { return p.subs.len() }

// Backlog counts queued events, including any spilled while draining.
func (p *Partition) Backlog() int {
	p.overflowMu.Lock()
	defer p.overflowMu.Unlock()
	return len(p.queue) + len(p.overflow)
}

// Health grades the backlog. Half-full wins over the fixed DEGRADED
// threshold so that CRITICAL is reachable for any capacity above 32.
func (p *Partition) Health() event.Health {
	size := p.Backlog()
	switch {
	case p.capacity-size < p.capacity/2:
		return event.Critical
	case size > degradedBacklog:
		return event.Degraded
	}
	return event.Good
}

// Attach subscribes r to this partition's topic; other topics go to the parent.
func (p *Partition) Attach(r event.Reactor, topics ...event.Topic) func() {
	var (
		local   bool
		foreign []event.Topic
	)
	for _, t := range topics {
		if t == p.topic {
			local = true
		} else {
			foreign = append(foreign, t)
		}
	}
	if len(topics) == 0 {
		local = true
	}

	detachers := make([]func(), 0, 2)
	if local {
		detachers = append(detachers, p.subscribe(r))
	}
	if len(foreign) > 0 && p.parent != nil {
		detachers = append(detachers, p.parent.Attach(r, foreign...))
	}
	return func() {
		for _, d := range detachers {
			d()
		}
	}
}

func (p *Partition) subscribe(r event.Reactor) func() {
	id := p.subs.add(r)
	return func() { p.subs.remove(id) }
}

// Fire enqueues ev when topic is owned here and blocks while the queue is
// full, unless the partition is draining. A closed partition drops the event
// with a warning.
func (p *Partition) Fire(topic event.Topic, ev event.Event) {
	if topic != p.topic {
		if p.parent == nil {
			p.log.Warn("event_dropped_no_route", slog.String("target", topic.String()), slog.String("kind", string(ev.Kind())))
			p.observer.Dropped(topic)
			return
		}
		p.parent.Fire(topic, ev)
		return
	}
	if p.draining.Load() {
		p.spill(ev)
		p.observer.Fired(p.topic)
		return
	}

	select {
	case p.queue <- ev:
		p.observer.Fired(p.topic)
		return
	default:
	}

	p.log.Debug("partition_backpressure", slog.Int("backlog", len(p.queue)))
	select {
	case p.queue <- ev:
		p.observer.Fired(p.topic)
	case <-p.done:
		p.log.Warn("event_dropped_on_close", slog.String("kind", string(ev.Kind())))
		p.observer.Dropped(p.topic)
	}
}

// spill enqueues ev without blocking. Once anything has overflowed, later
// events queue behind it so FIFO order holds across both buffers.
func (p *Partition) spill(ev event.Event) {
	p.overflowMu.Lock()
	defer p.overflowMu.Unlock()
	if len(p.overflow) == 0 {
		select {
		case p.queue <- ev:
			return
		default:
		}
		p.log.Debug("partition_overflow", slog.Int("backlog", len(p.queue)))
	}
	p.overflow = append(p.overflow, ev)
}

// Process dispatches up to limit queued events without blocking and returns
// how many were handled. Events fired while dispatching are eligible.
func (p *Partition) Process(limit int) int {
	handled := 0
	for handled < limit {
		ev, ok := p.next()
		if !ok {
			return handled
		}
		p.dispatch(ev)
		handled++
	}
	return handled
}

// next pops the queue, then the overflow once the queue is empty.
func (p *Partition) next() (event.Event, bool) {
	select {
	case ev := <-p.queue:
		return ev, true
	default:
	}
	p.overflowMu.Lock()
	defer p.overflowMu.Unlock()
	if len(p.overflow) == 0 {
		return nil, false
	}
	ev := p.overflow[0]
	p.overflow[0] = nil
	p.overflow = p.overflow[1:]
	return ev, true
}

// Run dispatches events as they arrive until ctx is cancelled.
func (p *Partition) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.queue:
			p.dispatch(ev)
		}
	}
}

// DynamicRun is Run with an overload strategy consulted before each event.
// Extra workers are awaited before it returns.
func (p *Partition) DynamicRun(ctx context.Context, limits Limits) error {
	strategy := newOverload(p, limits)
	defer strategy.wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.queue:
			strategy.apply(ctx)
			p.dispatch(ev)
		}
	}
}

// Close unblocks producers waiting on a full queue.
func (p *Partition) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Partition) dispatch(ev event.Event) {
	subs := p.subs.snapshot()
	p.shuffle(len(subs), func(i, j int) { subs[i], subs[j] = subs[j], subs[i] })
	for _, s := range subs {
		p.deliver(s, ev)
	}
	p.observer.Dispatched(p.topic)
}

func (p *Partition) deliver(s subscriber, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("reactor_panic", slog.Uint64("subscriber", s.id), slog.String("kind", string(ev.Kind())), slog.Any("panic", r))
		}
	}()
	s.reactor.React(p, ev)
}

// Config tunes partitions and their overload strategy.
type Config struct {
	QueueDepth int
	Limits     Limits
	Shuffle    Shuffler
	Logger     *slog.Logger
	Observer   Observer
}

func (c Config) withDefaults() Config {
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	c.Limits = c.Limits.withDefaults()
	if c.Shuffle == nil {
		c.Shuffle = rand.Shuffle
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return c
}

// Unbounded is a Process limit that drains the queue.
const Unbounded = math.MaxInt
