// v0
// internal/simulation/clock.go
package simulation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patonw/elevator-sim/internal/event"
)

// SyncBus is a bus that can be drained from the calling goroutine.
type SyncBus interface {
	event.Bus
	Drain() int
}

// Offline drives a bus tick by tick without delay, draining all follow-up
// events before the next tick. Tests use it for deterministic runs.
type Offline struct {
	bus   SyncBus
	clock int64
}

func NewOffline(b SyncBus) *Offline { return &Offline{bus: b} }

// Clock is the last tick fired.
func (o *Offline) Clock() int64 { return o.clock }

// RunTo fires every tick after the current clock up to and including limit.
func (o *Offline) RunTo(limit int64) {
	for o.clock < limit {
		o.clock++
		o.bus.Fire(event.Default, event.ClockTick{Value: o.clock})
		o.bus.Drain()
	}
}

// AsyncBus runs its own dispatch loops.
type AsyncBus interface {
	event.Bus
	Run(ctx context.Context) error
	DynamicRun(ctx context.Context) error
	Close()
}

// FixedRate fires a tick every rate while the bus runs in the foreground.
type FixedRate struct {
	bus     AsyncBus
	rate    time.Duration
	dynamic bool
	limit   int64
	clock   atomic.Int64
	log     *slog.Logger
}

func NewFixedRate(b AsyncBus, rate time.Duration, dynamic bool, log *slog.Logger) *FixedRate {
	if log == nil {
		log = slog.Default()
	}
	return &FixedRate{bus: b, rate: rate, dynamic: dynamic, log: log}
}

func (f *FixedRate) Clock() int64 { return f.clock.Load() }

// WithLimit stops the run once tick n has been fired. Zero means no limit.
func (f *FixedRate) WithLimit(n int64) *FixedRate {
	f.limit = n
	return f
}

// Run blocks until ctx is cancelled or the bus fails. The ticker is stopped
// and awaited before Run returns.
func (f *FixedRate) Run(ctx context.Context) error {
	ctx, finish := context.WithCancel(ctx)
	defer finish()
	tickCtx, stopTicks := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.tick(tickCtx, finish)
	}()

	f.log.Info("simulation_started", slog.Duration("rate", f.rate), slog.Bool("dynamic", f.dynamic))
	var err error
	if f.dynamic {
		err = f.bus.DynamicRun(ctx)
	} else {
		err = f.bus.Run(ctx)
	}

	stopTicks()
	f.bus.Close()
	wg.Wait()
	f.log.Info("simulation_stopped", slog.Int64("clock", f.clock.Load()))
	return err
}

func (f *FixedRate) tick(ctx context.Context, finish context.CancelFunc) {
	ticker := time.NewTicker(f.rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := f.clock.Add(1)
			f.bus.Fire(event.Default, event.ClockTick{Value: now})
			if f.limit > 0 && now >= f.limit {
				f.log.Info("tick_limit_reached", slog.Int64("clock", now))
				finish()
				return
			}
		}
	}
}
