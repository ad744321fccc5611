// v0
// internal/bus/partitioned.go
package bus

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/patonw/elevator-sim/internal/event"
)

// Partitioned routes every topic to its own Partition so that topics never
// contend for a shared queue or lock.
type Partitioned struct {
	parts  []*Partition
	limits Limits
	log    *slog.Logger
}

// PartitionStatus is a point-in-time view of one partition.
type PartitionStatus struct {
	Topic       string `json:"topic"`
	Health      string `json:"health"`
	Backlog     int    `json:"backlog"`
	Capacity    int    `json:"capacity"`
	Subscribers int    `json:"subscribers"`
}

// NewPartitioned creates one partition per topic.
func NewPartitioned(cfg Config) *Partitioned {
	cfg = cfg.withDefaults()
	b := &Partitioned{limits: cfg.Limits, log: cfg.Logger}
	for _, t := range event.Topics {
		b.parts = append(b.parts, NewPartition(t, b, cfg))
	}
	return b
}

// Partition returns the partition owning topic.
func (b *Partitioned) Partition(topic event.Topic) *Partition {
	return b.parts[topic]
}

func (b *Partitioned) Fire(topic event.Topic, ev event.Event) {
	b.parts[topic].Fire(topic, ev)
}

// Attach subscribes r to each listed topic, or to every topic when none are given.
func (b *Partitioned) Attach(r event.Reactor, topics ...event.Topic) func() {
	if len(topics) == 0 {
		topics = event.Topics
	}
	detachers := make([]func(), 0, len(topics))
	for _, t := range topics {
		detachers = append(detachers, b.parts[t].subscribe(r))
	}
	return func() {
		for _, d := range detachers {
			d()
		}
	}
}

// Health is the worst grade across partitions.
func (b *Partitioned) Health() event.Health {
	h := event.Good
	for _, p := range b.parts {
		h = event.Worst(h, p.Health())
	}
	return h
}

// Backlog is the total number of queued events.
func (b *Partitioned) Backlog() int {
	total := 0
	for _, p := range b.parts {
		total += p.Backlog()
	}
	return total
}

func (b *Partitioned) Status() []PartitionStatus {
	out := make([]PartitionStatus, 0, len(b.parts))
	for _, p := range b.parts {
		out = append(out, PartitionStatus{
			Topic:       p.topic.String(),
			Health:      p.Health().String(),
			Backlog:     p.Backlog(),
			Capacity:    p.capacity,
			Subscribers: p.Subscribers(),
		})
	}
	return out
}

// Process makes one non-blocking pass over the partitions in topic order.
func (b *Partitioned) Process(limit int) int {
	handled := 0
	for _, p := range b.parts {
		handled += p.Process(limit)
	}
	return handled
}

// Drain processes until every partition is empty, including follow-up
// events fired while draining. It is the synchronous mode used offline:
// events fired onto a full partition during a drain are buffered rather
// than blocking, since the caller is the only consumer.
func (b *Partitioned) Drain() int {
	for _, p := range b.parts {
		p.draining.Store(true)
	}
	defer func() {
		for _, p := range b.parts {
			p.draining.Store(false)
		}
	}()
	total := 0
	for {
		n := b.Process(Unbounded)
		if n == 0 {
			return total
		}
		total += n
	}
}

// Run starts one dispatch loop per partition and blocks until ctx ends.
func (b *Partitioned) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range b.parts {
		g.Go(func() error { return p.Run(ctx) })
	}
	b.log.Info("bus_started", slog.Int("partitions", len(b.parts)), slog.Bool("dynamic", false))
	return g.Wait()
}

// DynamicRun is Run with per-partition overload workers.
func (b *Partitioned) DynamicRun(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range b.parts {
		g.Go(func() error { return p.DynamicRun(ctx, b.limits) })
	}
	b.log.Info("bus_started", slog.Int("partitions", len(b.parts)), slog.Bool("dynamic", true), slog.Int("max_workers", b.limits.MaxWorkers))
	return g.Wait()
}

// Close releases producers blocked on full partitions.
func (b *Partitioned) Close() {
	for _, p := range b.parts {
		p.Close()
	}
}
