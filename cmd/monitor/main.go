// v0
// cmd/monitor/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/journal"
	"github.com/patonw/elevator-sim/internal/simulation"
)

// monitor follows a simulator journal, replays it through a watchdog and
// prints per-kind counts when interrupted.
func main() {
	path := flag.String("journal", "elevatorsim.jsonl", "journal file to follow")
	poll := flag.Duration("poll", 200*time.Millisecond, "poll interval while waiting for new records")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchdog := simulation.NewWatchdog(simulation.WatchdogConfig{Logger: logger})
	counts := map[event.Kind]int{}
	// arrivals are only checked against the clock when ticks are journaled
	ticks := false
	tailer := journal.NewTailer(*path, *poll, logger)
	err := tailer.Follow(ctx, func(r *journal.Record) error {
		_, ev, err := r.Event.Unwrap()
		if err != nil {
			return fmt.Errorf("record %d: %w", r.Seq, err)
		}
		counts[ev.Kind()]++
		switch ev.(type) {
		case event.ClockTick:
			ticks = true
		case event.ElevatorArrived:
			if !ticks {
				return nil
			}
		}
		watchdog.React(nil, ev)
		return nil
	})
	if err != nil {
		logger.Error("monitor_failed", slog.Any("err", err))
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		fmt.Printf("%-20s %d\n", k, counts[event.Kind(k)])
	}
	fmt.Printf("%-20s %d\n", "records", tailer.Report().Records)
	fmt.Printf("%-20s %d\n", "lagging_arrivals", watchdog.Lagging())
	if err != nil {
		os.Exit(1)
	}
}
