// v0
// internal/ingest/kafka.go
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/patonw/elevator-sim/internal/circuitbreaker"
	"github.com/patonw/elevator-sim/internal/event"
)

// Config groups the Kafka settings for inbound passenger requests.
type Config struct {
	Brokers []string
	GroupID string
	Topic   string
	Floors  int
	Breaker circuitbreaker.KafkaSettings
}

// Request is the wire form of a passenger request.
type Request struct {
	Origin      int `json:"origin"`
	Destination int `json:"destination"`
}

var ErrInvalidRequest = errors.New("invalid passenger request")

// Validate checks both floors lie in [0, floors) and differ.
func (r Request) Validate(floors int) error {
	switch {
	case r.Origin < 0 || r.Origin >= floors:
		return fmt.Errorf("%w: origin %d outside [0,%d)", ErrInvalidRequest, r.Origin, floors)
	case r.Destination < 0 || r.Destination >= floors:
		return fmt.Errorf("%w: destination %d outside [0,%d)", ErrInvalidRequest, r.Destination, floors)
	case r.Origin == r.Destination:
		return fmt.Errorf("%w: origin equals destination", ErrInvalidRequest)
	}
	return nil
}

// Submit creates a passenger for r and fires its schedule request.
func Submit(b event.Bus, r Request) event.Passenger {
	p := event.NewPassenger(r.Destination)
	b.Fire(event.Default, event.ScheduleRequest{Passenger: p, Floor: r.Origin})
	return p
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type readCloser interface {
	Close() error
}

// Consumer turns messages on the request topic into schedule requests.
type Consumer struct {
	cfg      Config
	bus      event.Bus
	reader   messageReader
	closer   readCloser
	breaker  *circuitbreaker.KafkaBreaker
	log      *slog.Logger
	accepted atomic.Int64
	invalid  atomic.Int64
}

// New builds a consumer on a breaker-guarded kafka.Reader.
func New(cfg Config, b event.Bus, log *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("request topic must not be empty")
	}
	base := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1e6,
	})
	breaker := circuitbreaker.NewKafkaBreaker("request-reader", cfg.Breaker, log)
	c, err := newConsumerWithReader(cfg, b, circuitbreaker.NewReader(base, breaker), base, log)
	if err != nil {
		base.Close()
		return nil, err
	}
	c.breaker = breaker
	return c, nil
}

// Breaker is the breaker guarding fetches, nil when disabled.
func (c *Consumer) Breaker() *circuitbreaker.Breaker { return c.breaker.Breaker() }

// newConsumerWithReader wires the provided reader into the consumer. It is used in tests.
func newConsumerWithReader(cfg Config, b event.Bus, r messageReader, closer readCloser, log *slog.Logger) (*Consumer, error) {
	if b == nil {
		return nil, fmt.Errorf("event bus must not be nil")
	}
	if r == nil {
		return nil, fmt.Errorf("reader must not be nil")
	}
	if cfg.Floors <= 0 {
		return nil, fmt.Errorf("floors must be positive")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{cfg: cfg, bus: b, reader: r, closer: closer, log: log.With(slog.String("component", "request_consumer"))}, nil
}

// Run consumes until ctx ends. Undecodable or invalid messages are logged
// and committed so they are not redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if c.closer == nil {
			return
		}
		if err := c.closer.Close(); err != nil {
			c.log.Error("reader_close", slog.Any("err", err))
		}
	}()
	c.log.Info("consumer_start", slog.String("topic", c.cfg.Topic))

	backoff := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.Info("consumer_stop", slog.String("reason", "context"))
				return nil
			}
			c.log.Error("fetch_err", slog.Any("err", err))
			select {
			case <-time.After(backoff):
				if backoff < 10*time.Second {
					backoff *= 2
				}
				continue
			case <-ctx.Done():
				c.log.Info("consumer_stop", slog.String("reason", "shutdown"))
				return nil
			}
		}
		backoff = time.Second

		if err := c.handle(msg); err != nil {
			c.invalid.Add(1)
			c.log.Warn("request_rejected", slog.Any("err", err), slog.Int64("offset", msg.Offset), slog.Int("partition", msg.Partition))
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit_err", slog.Any("err", err))
		}
	}
}

func (c *Consumer) handle(msg kafka.Message) error {
	var req Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := req.Validate(c.cfg.Floors); err != nil {
		return err
	}
	p := Submit(c.bus, req)
	c.accepted.Add(1)
	c.log.Debug("request_ingested", slog.String("passenger", p.ID.String()), slog.Int("origin", req.Origin), slog.Int("destination", req.Destination))
	return nil
}

func (c *Consumer) Accepted() int64 { return c.accepted.Load() }
func (c *Consumer) Invalid() int64  { return c.invalid.Load() }
