// v0
// internal/circuitbreaker/breaker_test.go
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

var errSynthetic = errors.New("synthetic failure")

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	b := New("unit", Config{MaxFailures: 2, ResetTimeout: time.Second, SuccessesToClose: 1}, nil)
	b.now = func() time.Time { return now }

	fail := func(context.Context) error { return errSynthetic }
	ok := func(context.Context) error { return nil }
	ctx := context.Background()

	if err := b.Execute(ctx, fail); !errors.Is(err, errSynthetic) {
		t.Fatalf("expected synthetic failure, got %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("one failure must not open the breaker")
	}
	b.Execute(ctx, fail)
	if b.State() != Open {
		t.Fatalf("expected open, got %v", b.State())
	}
	called := false
	if err := b.Execute(ctx, func(context.Context) error { called = true; return nil }); !errors.Is(err, ErrOpen) || called {
		t.Fatalf("expected fast fail, got %v (called=%v)", err, called)
	}

	now = now.Add(2 * time.Second)
	if err := b.Execute(ctx, fail); !errors.Is(err, errSynthetic) {
		t.Fatalf("probe should run, got %v", err)
	}
	if b.State() != Open {
		t.Fatalf("failed probe must reopen, got %v", b.State())
	}

	now = now.Add(2 * time.Second)
	if err := b.Execute(ctx, ok); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("expected closed after probe, got %v", b.State())
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := New("cancel", Config{MaxFailures: 1, ResetTimeout: time.Second}, nil)
	b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	if b.State() != Closed {
		t.Fatalf("cancellation must not count as a failure")
	}
}

func TestWriterRetriesThroughHalfOpen(t *testing.T) {
	kb := NewKafkaBreaker("writer", KafkaSettings{
		Enabled:  true,
		Breaker:  Config{MaxFailures: 2, ResetTimeout: 30 * time.Millisecond, SuccessesToClose: 2},
		Attempts: 5,
		Timeout:  50 * time.Millisecond,
		Backoff:  5 * time.Millisecond,
	}, nil)

	stub := &stubWriter{failuresBeforeSuccess: 2}
	writer := NewWriter(stub, kb)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := writer.WriteMessages(ctx, kafka.Message{Value: []byte("payload")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if kb.Breaker().State() != HalfOpen {
		t.Fatalf("expected half-open after first success, got %v", kb.Breaker().State())
	}
	if err := writer.WriteMessages(ctx, kafka.Message{Value: []byte("payload")}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if kb.Breaker().State() != Closed {
		t.Fatalf("expected closed, got %v", kb.Breaker().State())
	}
	if stub.calls != 4 {
		t.Fatalf("expected 4 write attempts, got %d", stub.calls)
	}
}

func TestWriterGivesUpAfterAttempts(t *testing.T) {
	kb := NewKafkaBreaker("writer", KafkaSettings{
		Enabled:  true,
		Breaker:  Config{MaxFailures: 10, ResetTimeout: time.Second},
		Attempts: 3,
	}, nil)
	stub := &stubWriter{failuresBeforeSuccess: 100}
	err := NewWriter(stub, kb).WriteMessages(context.Background(), kafka.Message{})
	if !errors.Is(err, errSynthetic) {
		t.Fatalf("expected synthetic failure, got %v", err)
	}
	if stub.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", stub.calls)
	}
}

func TestReaderDisabledCallsThrough(t *testing.T) {
	kb := NewKafkaBreaker("reader", KafkaSettings{}, nil)
	if kb.Enabled() || kb.Breaker() != nil {
		t.Fatalf("expected breaker disabled")
	}
	msg := kafka.Message{Topic: "demo", Value: []byte("v")}
	stub := &stubReader{message: msg}
	wrapped := NewReader(stub, kb)

	out, err := wrapped.FetchMessage(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stub.calls != 1 || string(out.Value) != "v" {
		t.Fatalf("unexpected fetch: calls=%d value=%q", stub.calls, out.Value)
	}
	if err := wrapped.CommitMessages(context.Background(), out); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if stub.commits != 1 {
		t.Fatalf("expected 1 commit, got %d", stub.commits)
	}
}

type stubWriter struct {
	mu                    sync.Mutex
	calls                 int
	failuresBeforeSuccess int
}

func (s *stubWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.calls++
	if s.calls <= s.failuresBeforeSuccess {
		return errSynthetic
	}
	return nil
}

type stubReader struct {
	mu      sync.Mutex
	calls   int
	commits int
	message kafka.Message
}

func (s *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return kafka.Message{}, ctx.Err()
	}
	s.calls++
	return s.message, nil
}

func (s *stubReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits += len(msgs)
	return nil
}
