// v0
// internal/circuitbreaker/kafka.go
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of kafka.Writer the wrappers use.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MessageReader is the subset of kafka.Reader the wrappers use.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSettings tunes the retry policy around a breaker.
type KafkaSettings struct {
	Enabled bool
	Breaker Config
	// Attempts bounds retries of ordinary failures per call.
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

// KafkaBreaker retries Kafka calls with backoff while consulting a breaker.
// A nil or disabled KafkaBreaker calls straight through.
type KafkaBreaker struct {
	settings KafkaSettings
	breaker  *Breaker
}

func NewKafkaBreaker(name string, s KafkaSettings, logger *slog.Logger) *KafkaBreaker {
	if s.Attempts < 1 {
		s.Attempts = 1
	}
	k := &KafkaBreaker{settings: s}
	if s.Enabled {
		k.breaker = New(name, s.Breaker, logger)
	}
	return k
}

func (k *KafkaBreaker) Enabled() bool {
	return k != nil && k.settings.Enabled && k.breaker != nil
}

// Breaker exposes the underlying breaker; nil when disabled.
func (k *KafkaBreaker) Breaker() *Breaker {
	if k == nil {
		return nil
	}
	return k.breaker
}

func (k *KafkaBreaker) do(ctx context.Context, op func(ctx context.Context) error) error {
	if !k.Enabled() {
		return op(ctx)
	}
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		attemptCtx, cancel := k.withAttemptContext(ctx)
		err := k.breaker.Execute(attemptCtx, op)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, ErrOpen) && attempts >= k.settings.Attempts {
			return err
		}
		if err := k.waitBackoff(ctx); err != nil {
			return err
		}
	}
}

func (k *KafkaBreaker) withAttemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if k.settings.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, k.settings.Timeout)
}

func (k *KafkaBreaker) waitBackoff(ctx context.Context) error {
	if k.settings.Backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(k.settings.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Writer guards a Kafka writer with a breaker.
type Writer struct {
	breaker *KafkaBreaker
	writer  MessageWriter
}

func NewWriter(w MessageWriter, breaker *KafkaBreaker) *Writer {
	return &Writer{writer: w, breaker: breaker}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w == nil || w.writer == nil {
		return errors.New("nil kafka writer")
	}
	return w.breaker.do(ctx, func(ctx context.Context) error {
		return w.writer.WriteMessages(ctx, msgs...)
	})
}

// Reader guards fetches from a Kafka reader with a breaker. Commits pass
// straight through.
type Reader struct {
	breaker *KafkaBreaker
	reader  MessageReader
}

func NewReader(r MessageReader, breaker *KafkaBreaker) *Reader {
	return &Reader{reader: r, breaker: breaker}
}

func (r *Reader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r == nil || r.reader == nil {
		return kafka.Message{}, errors.New("nil kafka reader")
	}
	var msg kafka.Message
	err := r.breaker.do(ctx, func(ctx context.Context) error {
		var err error
		msg, err = r.reader.FetchMessage(ctx)
		return err
	})
	return msg, err
}

func (r *Reader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	return r.reader.CommitMessages(ctx, msgs...)
}
