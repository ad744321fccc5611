// v0
// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/patonw/elevator-sim/internal/bus"
	"github.com/patonw/elevator-sim/internal/config"
	"github.com/patonw/elevator-sim/internal/deferred"
	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/fleet"
	"github.com/patonw/elevator-sim/internal/httpapi"
	"github.com/patonw/elevator-sim/internal/ingest"
	"github.com/patonw/elevator-sim/internal/journal"
	"github.com/patonw/elevator-sim/internal/kafkasink"
	"github.com/patonw/elevator-sim/internal/metrics"
	"github.com/patonw/elevator-sim/internal/scheduling"
	"github.com/patonw/elevator-sim/internal/simulation"
	"github.com/patonw/elevator-sim/internal/telemetry"
)

// Application wires the building, the bus, the clock and every optional
// integration, and runs them until shutdown.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	logFile *os.File

	bus      *bus.Partitioned
	queue    *deferred.Queue
	building *fleet.Building
	sim      *simulation.FixedRate
	watchdog *simulation.Watchdog
	metrics  *metrics.Metrics
	ready    *httpapi.Readiness
	server   *http.Server

	journal   *journal.Journal
	sink      *kafkasink.Publisher
	consumer  *ingest.Consumer
	telemetry *telemetry.Publisher
}

// New builds an application logging to stdout and the configured log file.
func New(cfg config.Config) (*Application, error) {
	return newApplication(cfg, os.Stdout)
}

func newApplication(cfg config.Config, console io.Writer) (*Application, error) {
	a := &Application{cfg: cfg, ready: &httpapi.Readiness{}}
	built := false
	defer func() {
		if !built {
			_ = a.Close()
		}
	}()

	var file io.Writer
	if path := strings.TrimSpace(cfg.LogFilePath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		lf, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.logFile = lf
		file = lf
	}
	a.logger = newLogger(console, file, cfg.LogLevel)
	log := a.logger

	a.metrics = metrics.New()
	a.bus = bus.NewPartitioned(bus.Config{
		QueueDepth: cfg.QueueDepth,
		Limits:     bus.Limits{MaxWorkers: cfg.MaxWorkers, WorkLimit: cfg.WorkLimit, PauseLimit: cfg.PauseLimit},
		Logger:     log.With(slog.String("component", "bus")),
		Observer:   a.metrics,
	})
	a.metrics.TrackBus(a.bus)
	a.queue = deferred.New(log.With(slog.String("component", "event_queue")))

	scheduler, err := scheduling.New(cfg.Scheduler, log.With(slog.String("component", "scheduler")))
	if err != nil {
		return nil, err
	}
	a.watchdog = simulation.NewWatchdog(simulation.WatchdogConfig{
		Health:        a.bus.Health,
		Queue:         a.queue,
		ProbeInterval: cfg.ProbeInterval,
		Logger:        log.With(slog.String("component", "watchdog")),
	})
	reactors := []event.Reactor{a.metrics, a.watchdog}
	if cfg.LogLevel <= slog.LevelDebug {
		reactors = append(reactors, simulation.NewEventLogger(log))
	}

	building, err := fleet.New(fleet.Config{
		Floors:      cfg.Floors,
		Elevators:   cfg.Elevators,
		HomeFloors:  cfg.HomeFloors,
		Bus:         a.bus,
		Queue:       a.queue,
		Scheduler:   scheduler,
		RetryJitter: cfg.RetryJitter,
		Reactors:    reactors,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	a.building = building
	a.sim = simulation.NewFixedRate(a.bus, cfg.TickRate, cfg.Dynamic, log.With(slog.String("component", "clock"))).WithLimit(cfg.TickLimit)

	if err := a.wireIntegrations(); err != nil {
		return nil, err
	}

	if cfg.ListenAddress != "" {
		api := httpapi.NewServer(a.building, a.bus, a.bus, a.ready, a.metrics, log.With(slog.String("component", "http")))
		a.server = &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           api.Handler(console),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		}
	}
	built = true
	return a, nil
}

func (a *Application) wireIntegrations() error {
	cfg, log := a.cfg, a.logger

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath, log.With(slog.String("component", "journal")))
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		var skip []event.Kind
		if !cfg.JournalTicks {
			skip = append(skip, event.KindClockTick)
		}
		for topic, sink := range journal.Sinks(j, log, skip...) {
			a.bus.Attach(sink, topic)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := kafkasink.New(kafkasink.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.EventsTopic,
			Skip:    []event.Kind{event.KindClockTick},
			Breaker: cfg.Breaker,
		}, log)
		if err != nil {
			return fmt.Errorf("kafka sink: %w", err)
		}
		a.sink = sink
		sink.Attach(a.bus)
		a.metrics.TrackBreaker("kafka_sink", sink.Breaker())

		consumer, err := ingest.New(ingest.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.RequestsTopic,
			Floors:  cfg.Floors,
			Breaker: cfg.Breaker,
		}, a.bus, log)
		if err != nil {
			return fmt.Errorf("kafka ingest: %w", err)
		}
		a.consumer = consumer
		a.metrics.TrackBreaker("kafka_ingest", consumer.Breaker())
	}

	if cfg.MQTTBroker != "" {
		tp, err := telemetry.Connect(telemetry.Config{Broker: cfg.MQTTBroker, Prefix: cfg.MQTTPrefix}, log)
		if err != nil {
			return err
		}
		a.telemetry = tp
		a.bus.Attach(tp, event.Elevator)
	}
	return nil
}

func (a *Application) Logger() *slog.Logger         { return a.logger }
func (a *Application) Bus() *bus.Partitioned          { return a.bus }
func (a *Application) Building() *fleet.Building      { return a.building }
func (a *Application) Watchdog() *simulation.Watchdog { return a.watchdog }

// Run blocks until ctx is cancelled, the tick limit is reached, or a
// component fails. Everything started here is stopped before it returns.
func (a *Application) Run(ctx context.Context) error {
	if err := a.watchdog.Start(); err != nil {
		return fmt.Errorf("schedule health probe: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		a.ready.SetReady(true)
		defer a.ready.SetReady(false)
		return a.sim.Run(ctx)
	})
	if a.sink != nil {
		g.Go(func() error { return a.sink.Run(ctx) })
	}
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(ctx) })
	}
	if a.server != nil {
		g.Go(func() error {
			a.logger.Info("http_server_listen", slog.String("address", a.cfg.ListenAddress))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer shutdownCancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("server_shutdown_failed", slog.Any("err", err))
			}
			return nil
		})
	}

	err := g.Wait()
	a.logger.Info("shutdown_complete",
		slog.Int64("clock", a.sim.Clock()),
		slog.Int64("lagging_arrivals", a.watchdog.Lagging()),
		slog.String("bus_health", a.bus.Health().String()))
	return err
}

// Close releases files and connections owned by the application.
func (a *Application) Close() error {
	var errs []error
	if a.telemetry != nil {
		a.telemetry.Close()
		a.telemetry = nil
	}
	if a.journal != nil {
		if report, err := a.journal.Verify(); err != nil {
			errs = append(errs, fmt.Errorf("verify journal: %w", err))
		} else if a.logger != nil {
			a.logger.Info("journal_verified", slog.Int("records", report.Records))
		}
		errs = append(errs, a.journal.Close())
		a.journal = nil
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
		a.logFile = nil
	}
	return errors.Join(errs...)
}
