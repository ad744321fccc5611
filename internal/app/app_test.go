// v0
// internal/app/app_test.go
package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patonw/elevator-sim/internal/config"
	"github.com/patonw/elevator-sim/internal/event"
	"github.com/patonw/elevator-sim/internal/journal"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Floors = 10
	cfg.Elevators = 2
	cfg.HomeFloors = []int{0, 9}
	cfg.TickRate = time.Millisecond
	cfg.TickLimit = 80
	cfg.ProbeInterval = 20
	cfg.RetryJitter = 0
	cfg.ListenAddress = ""
	cfg.JournalPath = filepath.Join(t.TempDir(), "journal.jsonl")
	cfg.LogFilePath = filepath.Join(t.TempDir(), "logs", "elevatorsim.log")
	return cfg
}

func TestRunToTickLimitJournalsRide(t *testing.T) {
	cfg := testConfig(t)
	var console bytes.Buffer
	a, err := newApplication(cfg, &console)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	p := event.NewPassenger(7)
	a.Bus().Fire(event.Default, event.ScheduleRequest{Passenger: p, Floor: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("run should end at the tick limit")
	}
	if a.Watchdog().Probes() == 0 {
		t.Fatalf("expected health probes to run")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	kinds := map[event.Kind]int{}
	tailer := journal.NewTailer(cfg.JournalPath, time.Millisecond, nil)
	followCtx, stop := context.WithCancel(context.Background())
	report, err := journal.VerifyFile(cfg.JournalPath)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	seen := 0
	err = tailer.Follow(followCtx, func(r *journal.Record) error {
		kinds[r.Event.Kind]++
		if seen++; seen == report.Records {
			stop()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if kinds[event.KindClockTick] != 0 {
		t.Fatalf("ticks should not be journaled by default")
	}
	// a tick landing between planning and commit may force a rejected retry
	if kinds[event.KindScheduleRequest] < 1 {
		t.Fatalf("schedule request not journaled: %v", kinds)
	}
	for _, k := range []event.Kind{event.KindRequestAccepted, event.KindLoadPassenger, event.KindDropPassenger} {
		if kinds[k] != 1 {
			t.Fatalf("expected one %s, got %d (%v)", k, kinds[k], kinds)
		}
	}
	if !strings.Contains(console.String(), "building_ready") {
		t.Fatalf("expected startup logs on the console")
	}
}

func TestNewRejectsUnknownScheduler(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler = "elevator-music"
	if _, err := newApplication(cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown scheduler")
	}
}
