// v0
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/patonw/elevator-sim/internal/circuitbreaker"
)

// Config captures every runtime setting of the simulator. Values come from
// defaults, then an optional properties file, then ELEVATORSIM_* variables.
type Config struct {
	Floors     int
	Elevators  int
	HomeFloors []int
	// Scheduler is one of round-robin, greedy, in-path or flock.
	Scheduler string

	TickRate      time.Duration
	TickLimit     int64 // 0 runs until interrupted
	Dynamic       bool
	QueueDepth    int
	MaxWorkers    int
	WorkLimit     int
	PauseLimit    int
	RetryJitter   time.Duration
	ProbeInterval int64

	ListenAddress   string
	ShutdownTimeout time.Duration
	LogFilePath     string
	LogLevel        slog.Level
	PropertiesPath  string

	JournalPath  string
	JournalTicks bool

	KafkaBrokers  []string
	EventsTopic   string
	RequestsTopic string
	KafkaGroupID  string

	MQTTBroker string
	MQTTPrefix string

	Breaker circuitbreaker.KafkaSettings
}

const (
	envPrefix        = "ELEVATORSIM_"
	defaultPropsPath = "elevatorsim.properties"
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Floors:          30,
		Elevators:       5,
		Scheduler:       "greedy",
		TickRate:        100 * time.Millisecond,
		Dynamic:         true,
		QueueDepth:      1024,
		MaxWorkers:      4,
		WorkLimit:       4096,
		PauseLimit:      128,
		RetryJitter:     50 * time.Millisecond,
		ProbeInterval:   100,
		ListenAddress:   ":8090",
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        slog.LevelInfo,
		EventsTopic:     "elevator.events",
		RequestsTopic:   "elevator.requests",
		KafkaGroupID:    "elevatorsim",
		MQTTPrefix:      "elevatorsim",
		Breaker: circuitbreaker.KafkaSettings{
			Breaker:  circuitbreaker.Config{MaxFailures: 5, ResetTimeout: 30 * time.Second, SuccessesToClose: 2},
			Attempts: 5,
			Timeout:  3 * time.Second,
			Backoff:  200 * time.Millisecond,
		},
	}
}

// Load resolves configuration by layering defaults, an optional
// properties file, and finally environment variables. The properties
// file location can be overridden with ELEVATORSIM_CONFIG.
func Load() (Config, error) {
	cfg := Default()

	propsPath := strings.TrimSpace(os.Getenv(envPrefix + "CONFIG"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if len(c.HomeFloors) > 0 && len(c.HomeFloors) < c.Elevators {
		return fmt.Errorf("home_floors lists %d floors for %d elevators", len(c.HomeFloors), c.Elevators)
	}
	for _, h := range c.HomeFloors {
		if h < 0 || h >= c.Floors {
			return fmt.Errorf("home floor %d outside [0,%d)", h, c.Floors)
		}
	}
	return nil
}

func applyProperties(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		set, ok := setters[key]
		if !ok {
			// Unknown keys are ignored to keep the loader forward-compatible.
			continue
		}
		if err := set(cfg, strings.TrimSpace(parts[1])); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

// applyEnv looks up ELEVATORSIM_<KEY> for every property key.
func applyEnv(cfg *Config) error {
	for _, key := range keys {
		name := envPrefix + strings.ToUpper(key)
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if err := setters[key](cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

type setter func(cfg *Config, value string) error

// keys fixes the order environment variables are applied in.
var keys = []string{
	"floors", "elevators", "home_floors", "scheduler",
	"tick_rate_ms", "tick_limit", "dynamic", "queue_depth", "max_workers", "work_limit", "pause_limit",
	"retry_jitter_ms", "probe_interval",
	"listen_address", "shutdown_timeout_ms", "log_path", "log_level",
	"journal_path", "journal_ticks",
	"kafka_brokers", "kafka_events_topic", "kafka_requests_topic", "kafka_group_id",
	"mqtt_broker", "mqtt_prefix",
	"cb_enabled", "cb_failure_threshold", "cb_success_threshold", "cb_open_seconds", "cb_attempts", "cb_timeout_ms", "cb_backoff_ms",
}

var setters = map[string]setter{
	"floors":    positiveInt(func(c *Config, n int) { c.Floors = n }),
	"elevators": positiveInt(func(c *Config, n int) { c.Elevators = n }),
	"home_floors": func(c *Config, v string) error {
		floors, err := parseIntList(v)
		if err != nil {
			return err
		}
		c.HomeFloors = floors
		return nil
	},
	"scheduler": nonEmpty(func(c *Config, v string) { c.Scheduler = strings.ToLower(v) }),

	"tick_rate_ms": positiveMillis(func(c *Config, d time.Duration) { c.TickRate = d }),
	"tick_limit": func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		if n < 0 {
			return errors.New("value must not be negative")
		}
		c.TickLimit = n
		return nil
	},
	"dynamic":     boolean(func(c *Config, b bool) { c.Dynamic = b }),
	"queue_depth": positiveInt(func(c *Config, n int) { c.QueueDepth = n }),
	"max_workers": nonNegativeInt(func(c *Config, n int) { c.MaxWorkers = n }),
	"work_limit":  positiveInt(func(c *Config, n int) { c.WorkLimit = n }),
	"pause_limit": positiveInt(func(c *Config, n int) { c.PauseLimit = n }),
	"retry_jitter_ms": func(c *Config, v string) error {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		if ms < 0 {
			return errors.New("value must not be negative")
		}
		c.RetryJitter = time.Duration(ms) * time.Millisecond
		return nil
	},
	"probe_interval": nonNegativeInt(func(c *Config, n int) { c.ProbeInterval = int64(n) }),

	"listen_address":      func(c *Config, v string) error { c.ListenAddress = v; return nil },
	"shutdown_timeout_ms": positiveMillis(func(c *Config, d time.Duration) { c.ShutdownTimeout = d }),
	"log_path": func(c *Config, v string) error {
		if v != "" {
			v = filepath.Clean(v)
		}
		c.LogFilePath = v
		return nil
	},
	"log_level": func(c *Config, v string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return err
		}
		c.LogLevel = level
		return nil
	},

	"journal_path":  func(c *Config, v string) error { c.JournalPath = v; return nil },
	"journal_ticks": boolean(func(c *Config, b bool) { c.JournalTicks = b }),

	"kafka_brokers":        func(c *Config, v string) error { c.KafkaBrokers = splitAndTrim(v); return nil },
	"kafka_events_topic":   nonEmpty(func(c *Config, v string) { c.EventsTopic = v }),
	"kafka_requests_topic": nonEmpty(func(c *Config, v string) { c.RequestsTopic = v }),
	"kafka_group_id":       nonEmpty(func(c *Config, v string) { c.KafkaGroupID = v }),

	"mqtt_broker": func(c *Config, v string) error { c.MQTTBroker = v; return nil },
	"mqtt_prefix": nonEmpty(func(c *Config, v string) { c.MQTTPrefix = v }),

	"cb_enabled":           boolean(func(c *Config, b bool) { c.Breaker.Enabled = b }),
	"cb_failure_threshold": positiveInt(func(c *Config, n int) { c.Breaker.Breaker.MaxFailures = n }),
	"cb_success_threshold": positiveInt(func(c *Config, n int) { c.Breaker.Breaker.SuccessesToClose = n }),
	"cb_open_seconds": func(c *Config, v string) error {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		if secs <= 0 {
			return errors.New("value must be greater than zero")
		}
		c.Breaker.Breaker.ResetTimeout = time.Duration(secs * float64(time.Second))
		return nil
	},
	"cb_attempts":   positiveInt(func(c *Config, n int) { c.Breaker.Attempts = n }),
	"cb_timeout_ms": positiveMillis(func(c *Config, d time.Duration) { c.Breaker.Timeout = d }),
	"cb_backoff_ms": positiveMillis(func(c *Config, d time.Duration) { c.Breaker.Backoff = d }),
}

func positiveInt(apply func(*Config, int)) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		if n <= 0 {
			return errors.New("value must be greater than zero")
		}
		apply(c, n)
		return nil
	}
}

func nonNegativeInt(apply func(*Config, int)) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		if n < 0 {
			return errors.New("value must not be negative")
		}
		apply(c, n)
		return nil
	}
}

func positiveMillis(apply func(*Config, time.Duration)) setter {
	return positiveInt(func(c *Config, ms int) { apply(c, time.Duration(ms)*time.Millisecond) })
}

func nonEmpty(apply func(*Config, string)) setter {
	return func(c *Config, v string) error {
		if v == "" {
			return errors.New("value cannot be empty")
		}
		apply(c, v)
		return nil
	}
}

func boolean(apply func(*Config, bool)) setter {
	return func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			apply(c, true)
		case "0", "false", "no", "off", "":
			apply(c, false)
		default:
			return fmt.Errorf("invalid boolean %q", v)
		}
		return nil
	}
}

func parseIntList(raw string) ([]int, error) {
	fields := splitAndTrim(raw)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
