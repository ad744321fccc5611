// v0
// internal/bus/overload.go
package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patonw/elevator-sim/internal/event"
)

const (
	DefaultMaxWorkers = 4
	DefaultWorkLimit  = 4096
	DefaultPauseLimit = 128
)

// Limits bounds the extra workers a partition may spawn under backlog.
type Limits struct {
	// MaxWorkers caps concurrently running extra workers per partition.
	MaxWorkers int
	// WorkLimit is the number of events after which a worker retires.
	WorkLimit int
	// PauseLimit is the number of consecutive empty polls after which a worker retires.
	PauseLimit int
}

func (l Limits) withDefaults() Limits {
	if l.MaxWorkers <= 0 {
		l.MaxWorkers = DefaultMaxWorkers
	}
	if l.WorkLimit <= 0 {
		l.WorkLimit = DefaultWorkLimit
	}
	if l.PauseLimit <= 0 {
		l.PauseLimit = DefaultPauseLimit
	}
	return l
}

// overload spawns short-lived helpers for a partition that is falling behind.
type overload struct {
	part     *Partition
	limits   Limits
	active   atomic.Int32
	workerID atomic.Int32
	wg       sync.WaitGroup
}

func newOverload(p *Partition, limits Limits) *overload {
	return &overload{part: p, limits: limits.withDefaults()}
}

func (o *overload) apply(ctx context.Context) {
	if o.part.Health() == event.Good {
		return
	}
	if int(o.active.Load()) >= o.limits.MaxWorkers {
		return
	}
	o.spawn(ctx)
}

func (o *overload) spawn(ctx context.Context) {
	id := int(o.workerID.Add(1) % 100)
	pause := time.Duration(id%o.limits.MaxWorkers) * time.Millisecond
	active := o.active.Add(1)
	o.part.observer.WorkerStarted(o.part.topic)
	o.part.log.Info("partition_worker_spawned",
		slog.Int("worker", id), slog.Int("active", int(active)), slog.Int("max", o.limits.MaxWorkers))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		handled := o.work(ctx, pause)
		left := o.active.Add(-1)
		o.part.observer.WorkerStopped(o.part.topic, handled)
		o.part.log.Info("partition_worker_done",
			slog.Int("worker", id), slog.Int("handled", handled), slog.Int("active", int(left)))
	}()
}

func (o *overload) work(ctx context.Context, pause time.Duration) int {
	handled, pauses := 0, 0
	for handled < o.limits.WorkLimit && pauses < o.limits.PauseLimit {
		last := o.part.Process(o.limits.WorkLimit)
		if last > 0 {
			pauses = 0
		}
		handled += last
		pauses++

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return handled
		case <-timer.C:
		}
	}
	return handled
}

func (o *overload) wait() { o.wg.Wait() }
