// v0
// internal/circuitbreaker/breaker.go
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

// Config holds the breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // how long to stay open before probing
	SuccessesToClose int           // successes required in half-open before closing
}

// Breaker fast-fails calls after repeated failures and lets one caller at a
// time probe the dependency once the reset timeout has passed.
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

func New(name string, cfg Config, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.SuccessesToClose < 1 {
		cfg.SuccessesToClose = 1
	}
	b := &Breaker{name: name, cfg: cfg, logger: logger.With(slog.String("breaker", name)), now: time.Now}
	b.logger.Info("breaker_created", slog.Int("max_failures", cfg.MaxFailures), slog.Duration("reset_timeout", cfg.ResetTimeout))
	return b
}

// Execute runs op unless the breaker is open.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrOpen
		}
		b.state = HalfOpen
		b.successes = 0
		b.probing = true
		b.logger.Info("breaker_half_open")
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		b.failures = 0
		if b.state == HalfOpen {
			b.successes++
			if b.successes >= b.cfg.SuccessesToClose {
				b.state = Closed
				b.logger.Info("breaker_closed")
			}
		}
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.MaxFailures {
		b.state = Open
		b.openedAt = b.now()
		b.logger.Warn("breaker_opened", slog.Int("failures", b.failures), slog.Any("err", err))
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
