// v0
// internal/simulation/watchdog.go
package simulation

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/patonw/elevator-sim/internal/event"
)

// Scheduler is the part of the deferred queue the watchdog needs.
type Scheduler interface {
	ScheduleAt(time int64, topic event.Topic, ev event.Event) error
}

// WatchdogConfig wires a Watchdog. Health and Queue are optional.
type WatchdogConfig struct {
	Health        func() event.Health
	Queue         Scheduler
	ProbeInterval int64
	Logger        *slog.Logger
}

// Watchdog flags arrivals that lag the clock and answers health probes.
// With a queue and interval it keeps one probe scheduled ahead of the clock.
type Watchdog struct {
	cfg     WatchdogConfig
	clock   atomic.Int64
	lagging atomic.Int64
	probes  atomic.Int64
	log     *slog.Logger
}

func NewWatchdog(cfg WatchdogConfig) *Watchdog {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watchdog{cfg: cfg, log: cfg.Logger}
}

// Start schedules the first probe.
func (w *Watchdog) Start() error {
	if w.cfg.Queue == nil || w.cfg.ProbeInterval <= 0 {
		return nil
	}
	at := w.clock.Load() + w.cfg.ProbeInterval
	return w.cfg.Queue.ScheduleAt(at, event.Default, event.HealthProbe{Clock: at})
}

// Lagging counts arrivals more than one tick away from the clock.
func (w *Watchdog) Lagging() int64 { return w.lagging.Load() }

// Probes counts health probes answered.
func (w *Watchdog) Probes() int64 { return w.probes.Load() }

func (w *Watchdog) React(_ event.Bus, ev event.Event) {
	switch ev := ev.(type) {
	case event.ClockTick:
		w.clock.Store(ev.Value)
	case event.ElevatorArrived:
		now := w.clock.Load()
		if d := ev.Clock - now; d > 1 || d < -1 {
			w.lagging.Add(1)
			w.log.Error("event_bus_falling_behind", slog.Int("elevator", ev.Elevator),
				slog.Int64("arrival", ev.Clock), slog.Int64("clock", now))
		}
	case event.HealthProbe:
		w.probes.Add(1)
		health := event.Good
		if w.cfg.Health != nil {
			health = w.cfg.Health()
		}
		level := slog.LevelInfo
		if health != event.Good {
			level = slog.LevelWarn
		}
		w.log.Log(context.Background(), level, "health_probe", slog.Int64("clock", ev.Clock), slog.String("health", health.String()))
		if w.cfg.Queue != nil && w.cfg.ProbeInterval > 0 {
			next := ev.Clock + w.cfg.ProbeInterval
			if err := w.cfg.Queue.ScheduleAt(next, event.Default, event.HealthProbe{Clock: next}); err != nil {
				w.log.Warn("health_probe_reschedule_failed", slog.Any("err", err))
			}
		}
	}
}

// EventLogger logs every event it receives at debug level.
type EventLogger struct {
	log *slog.Logger
}

func NewEventLogger(log *slog.Logger) *EventLogger {
	if log == nil {
		log = slog.Default()
	}
	return &EventLogger{log: log}
}

func (l *EventLogger) React(_ event.Bus, ev event.Event) {
	if _, ok := ev.(event.ClockTick); ok {
		return
	}
	l.log.Debug("bus_event", slog.String("kind", string(ev.Kind())), slog.Any("event", ev))
}
