// v0
// internal/config/config_test.go
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeProps(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "elevatorsim.properties")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("ELEVATORSIM_CONFIG", filepath.Join(t.TempDir(), "missing.properties"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	if cfg.Floors != want.Floors || cfg.Elevators != want.Elevators || cfg.Scheduler != "greedy" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.KafkaBrokers != nil || cfg.MQTTBroker != "" || cfg.JournalPath != "" {
		t.Fatalf("integrations should be disabled by default")
	}
}

func TestLoadLayersPropertiesThenEnv(t *testing.T) {
	path := writeProps(t, `
# building
floors = 12
elevators = 3
home_floors = 0, 6, 11
scheduler = In-Path
tick_rate_ms = 20
log_level = debug
kafka_brokers = a:9092, b:9092
cb_enabled = true
cb_open_seconds = 0.5
unknown_key = ignored
`)
	t.Setenv("ELEVATORSIM_CONFIG", path)
	t.Setenv("ELEVATORSIM_ELEVATORS", "2")
	t.Setenv("ELEVATORSIM_TICK_LIMIT", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Floors != 12 || cfg.Elevators != 2 || cfg.TickLimit != 500 {
		t.Fatalf("unexpected building settings: %+v", cfg)
	}
	if !slices.Equal(cfg.HomeFloors, []int{0, 6, 11}) {
		t.Fatalf("unexpected home floors %v", cfg.HomeFloors)
	}
	if cfg.Scheduler != "in-path" || cfg.TickRate != 20*time.Millisecond || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected settings: %+v", cfg)
	}
	if !slices.Equal(cfg.KafkaBrokers, []string{"a:9092", "b:9092"}) {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.Breaker.Enabled || cfg.Breaker.Breaker.ResetTimeout != 500*time.Millisecond {
		t.Fatalf("unexpected breaker settings %+v", cfg.Breaker)
	}
	if cfg.PropertiesPath != path {
		t.Fatalf("properties path not recorded")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		props string
		env   map[string]string
		want  string
	}{
		{name: "malformed line", props: "floors\n", want: "line 1"},
		{name: "zero floors", props: "floors=0\n", want: "property floors"},
		{name: "bad env", env: map[string]string{"ELEVATORSIM_DYNAMIC": "maybe"}, want: "ELEVATORSIM_DYNAMIC"},
		{name: "home outside building", props: "floors=5\nelevators=1\nhome_floors=7\n", want: "home floor 7"},
		{name: "too few homes", props: "elevators=3\nhome_floors=1,2\n", want: "home_floors"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ELEVATORSIM_CONFIG", writeProps(t, tc.props))
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEveryKeyHasSetter(t *testing.T) {
	if len(keys) != len(setters) {
		t.Fatalf("%d keys but %d setters", len(keys), len(setters))
	}
	for _, k := range keys {
		if _, ok := setters[k]; !ok {
			t.Fatalf("no setter for %s", k)
		}
	}
}
