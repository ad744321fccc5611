// v0
// internal/event/codec.go
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Envelope is the serialised form shared by the journal, the Kafka sink and
// the monitor.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Topic   string          `json:"topic"`
	Time    int64           `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap serialises ev into an envelope stamped with the simulation time now.
// Events that carry their own tick are stamped with that tick instead.
func Wrap(topic Topic, ev Event, now int64) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	if tick, ok := TickOf(ev); ok {
		now = tick
	}
	return Envelope{Kind: ev.Kind(), Topic: topic.String(), Time: now, Payload: payload}, nil
}

// TickOf returns the tick ev carries, if it carries one.
func TickOf(ev Event) (int64, bool) {
	switch ev := ev.(type) {
	case ClockTick:
		return ev.Value, true
	case ElevatorArrived:
		return ev.Clock, true
	case ElevatorIdle:
		return ev.Clock, true
	case HealthProbe:
		return ev.Clock, true
	}
	return 0, false
}

// Clock remembers the latest tick observed. Ticks seen out of order never
// move it backwards. The zero value is ready to use.
type Clock struct {
	latest atomic.Int64
}

// Observe advances the clock when ev is a ClockTick.
func (c *Clock) Observe(ev Event) {
	tick, ok := ev.(ClockTick)
	if !ok {
		return
	}
	for {
		cur := c.latest.Load()
		if tick.Value <= cur || c.latest.CompareAndSwap(cur, tick.Value) {
			return
		}
	}
}

func (c *Clock) Now() int64 { return c.latest.Load() }

// Unwrap decodes the payload back into its concrete event type.
func (e Envelope) Unwrap() (Topic, Event, error) {
	topic, err := ParseTopic(e.Topic)
	if err != nil {
		return 0, nil, err
	}
	var ev Event
	switch e.Kind {
	case KindClockTick:
		ev, err = decode[ClockTick](e.Payload)
	case KindScheduleRequest:
		ev, err = decode[ScheduleRequest](e.Payload)
	case KindAssignRequest:
		ev, err = decode[AssignRequest](e.Payload)
	case KindRequestAccepted:
		ev, err = decode[RequestAccepted](e.Payload)
	case KindRequestRejected:
		ev, err = decode[RequestRejected](e.Payload)
	case KindElevatorArrived:
		ev, err = decode[ElevatorArrived](e.Payload)
	case KindElevatorIdle:
		ev, err = decode[ElevatorIdle](e.Payload)
	case KindPassengerWaiting:
		ev, err = decode[PassengerWaiting](e.Payload)
	case KindLoadPassenger:
		ev, err = decode[LoadPassenger](e.Payload)
	case KindDropPassenger:
		ev, err = decode[DropPassenger](e.Payload)
	case KindMissedConnection:
		ev, err = decode[MissedConnection](e.Payload)
	case KindHealthProbe:
		ev, err = decode[HealthProbe](e.Payload)
	default:
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("decode %s: %w", e.Kind, err)
	}
	return topic, ev, nil
}

func decode[T Event](raw json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
