// v0
// internal/journal/sink.go
package journal

import (
	"log/slog"
	"sync/atomic"

	"github.com/patonw/elevator-sim/internal/event"
)

// Sink appends every event it sees. Attach it to each topic separately so
// the topic is recorded alongside the event.
type Sink struct {
	journal *Journal
	topic   event.Topic
	skip    map[event.Kind]bool
	failed  *atomic.Int64
	log     *slog.Logger
}

// Sinks returns one sink per topic sharing j. Kinds listed in skip are not
// recorded; clock ticks are usually left out to keep the file small.
func Sinks(j *Journal, log *slog.Logger, skip ...event.Kind) map[event.Topic]*Sink {
	if log == nil {
		log = slog.Default()
	}
	set := make(map[event.Kind]bool, len(skip))
	for _, k := range skip {
		set[k] = true
	}
	failed := &atomic.Int64{}
	out := make(map[event.Topic]*Sink, len(event.Topics))
	for _, t := range event.Topics {
		out[t] = &Sink{journal: j, topic: t, skip: set, failed: failed, log: log}
	}
	return out
}

// Failed counts appends that returned an error.
func (s *Sink) Failed() int64 { return s.failed.Load() }

func (s *Sink) React(_ event.Bus, ev event.Event) {
	if s.skip[ev.Kind()] {
		s.journal.Observe(ev)
		return
	}
	if _, err := s.journal.Append(s.topic, ev); err != nil {
		s.failed.Add(1)
		s.log.Warn("journal_append_failed", slog.String("kind", string(ev.Kind())), slog.Any("err", err))
	}
}
