// v0
// internal/kafkasink/publisher.go
package kafkasink

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

// Config selects the brokers and topic events are mirrored to.
type Config struct {
	Brokers   []string
	Topic     string
	QueueSize int
	// Skip lists kinds that are not published.
	Skip    []event.Kind
	Breaker circuitbreaker.KafkaSettings
}

const (
	defaultQueueSize = 1024
	breakerName      = "event-sink-writer"
)

var errNilWriter = errors.New("publisher requires a writer")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type writeCloser interface {
	Close() error
}

// Publisher mirrors bus events to Kafka as JSON envelopes keyed by kind.
// Reacting never blocks: when the queue is full the event is dropped.
type Publisher struct {
	cfg       Config
	log       *slog.Logger
	writer    messageWriter
	closer    writeCloser
	breaker   *circuitbreaker.KafkaBreaker
	queue     chan kafka.Message
	skip      map[event.Kind]bool
	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	clock     event.Clock
}

// New builds a publisher on a breaker-guarded kafka.Writer.
func New(cfg Config, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka sink topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink needs at least one broker")
	}
	base := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	breaker := circuitbreaker.NewKafkaBreaker(breakerName, cfg.Breaker, log)
	p, err := newPublisherWithWriter(cfg, log, circuitbreaker.NewWriter(base, breaker), base)
	if err != nil {
		return nil, err
	}
	p.breaker = breaker
	return p, nil
}

// Breaker is the breaker guarding the writer, nil when disabled.
func (p *Publisher) Breaker() *circuitbreaker.Breaker { return p.breaker.Breaker() }

// newPublisherWithWriter wires the provided writer into the publisher. It is used in tests.
func newPublisherWithWriter(cfg Config, log *slog.Logger, w messageWriter, closer writeCloser) (*Publisher, error) {
	if w == nil {
		return nil, errNilWriter
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	skip := make(map[event.Kind]bool, len(cfg.Skip))
	for _, k := range cfg.Skip {
		skip[k] = true
	}
	return &Publisher{
		cfg:    cfg,
		log:    log.With(slog.String("component", "kafka_sink")),
		writer: w,
		closer: closer,
		queue:  make(chan kafka.Message, cfg.QueueSize),
		skip:   skip,
	}, nil
}

// Attach subscribes the publisher to every topic of b.
func (p *Publisher) Attach(b event.Bus) (detach func()) {
	var detaches []func()
	for _, topic := range event.Topics {
		detaches = append(detaches, b.Attach(event.ReactorFunc(func(_ event.Bus, ev event.Event) {
			p.Enqueue(topic, ev)
		}), topic))
	}
	return func() {
		for _, d := range detaches {
			d()
		}
	}
}

// Enqueue queues ev for publishing and reports whether it was accepted.
func (p *Publisher) Enqueue(topic event.Topic, ev event.Event) bool {
	p.clock.Observe(ev)
	if p.skip[ev.Kind()] {
		return false
	}
	env, err := event.Wrap(topic, ev, p.clock.Now())
	if err != nil {
		p.log.Error("kafka_sink_encode_err", slog.Any("err", err))
		return false
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.log.Error("kafka_sink_encode_err", slog.Any("err", err))
		return false
	}
	msg := kafka.Message{Key: []byte(env.Kind), Value: value}
	select {
	case p.queue <- msg:
		return true
	default:
		if p.dropped.Add(1)%100 == 1 {
			p.log.Warn("kafka_sink_queue_full", slog.String("kind", string(env.Kind)), slog.Int64("dropped", p.dropped.Load()))
		}
		return false
	}
}

// Run writes queued messages until ctx ends, then flushes what is left
// with a short grace period and closes the writer.
func (p *Publisher) Run(ctx context.Context) error {
	p.log.Info("kafka_sink_started", slog.String("topic", p.cfg.Topic))
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, msg)
		case <-ctx.Done():
			p.flush()
			return nil
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, msg)
			continue
		default:
		}
		break
	}
	if p.closer != nil {
		if err := p.closer.Close(); err != nil {
			p.log.Error("kafka_sink_close_err", slog.Any("err", err))
		}
	}
	p.log.Info("kafka_sink_stopped", slog.Int64("published", p.published.Load()), slog.Int64("dropped", p.dropped.Load()))
}

func (p *Publisher) write(ctx context.Context, msg kafka.Message) {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.failed.Add(1)
		if !errors.Is(err, context.Canceled) {
			p.log.Warn("kafka_sink_write_err", slog.String("key", string(msg.Key)), slog.Any("err", err))
		}
		return
	}
	p.published.Add(1)
}

func (p *Publisher) Published() int64 { return p.published.Load() }
func (p *Publisher) Dropped() int64   { return p.dropped.Load() }
func (p *Publisher) Failed() int64    { return p.failed.Load() }
