// v0
// cmd/elevatorsim/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/patonw/elevator-sim/internal/app"
	"github.com/patonw/elevator-sim/internal/config"
)

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("config_load_failed", slog.Any("err", err))
		os.Exit(1)
	}

	application, err := app.New(cfg)
	if err != nil {
		bootstrap.Error("app_init_failed", slog.Any("err", err))
		os.Exit(1)
	}

	logger := application.Logger()
	logger.Info("service_boot",
		slog.Int("floors", cfg.Floors),
		slog.Int("elevators", cfg.Elevators),
		slog.String("scheduler", cfg.Scheduler),
		slog.Duration("tick_rate", cfg.TickRate),
		slog.Int64("tick_limit", cfg.TickLimit),
		slog.String("listen_address", cfg.ListenAddress),
		slog.String("properties_path", cfg.PropertiesPath),
		slog.String("journal_path", cfg.JournalPath),
		slog.String("kafka_brokers", strings.Join(cfg.KafkaBrokers, ",")),
		slog.String("mqtt_broker", cfg.MQTTBroker),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)
	if err := application.Close(); err != nil {
		logger.Error("app_close_failed", slog.Any("err", err))
	}
	if runErr != nil {
		logger.Error("service_terminated", slog.Any("err", runErr))
		os.Exit(1)
	}
	logger.Info("service_stopped")
}
