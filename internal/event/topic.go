// v0
// internal/event/topic.go
package event

import (
	"fmt"
	"strings"
)

// Topic partitions the bus. Every event is fired on exactly one topic.
type Topic int

const (
	Default Topic = iota
	Scheduling
	Elevator
	Riders // String() is "passenger"
)

// Topics lists every topic in partition order.
var Topics = []Topic{Default, Scheduling, Elevator, Riders}

func (t Topic) String() string {
	switch t {
	case Default:
		return "default"
	case Scheduling:
		return "scheduling"
	case Elevator:
		return "elevator"
	case Riders:
		return "passenger"
	}
	return fmt.Sprintf("topic(%d)", int(t))
}

// ParseTopic is the inverse of Topic.String.
func ParseTopic(s string) (Topic, error) {
	for _, t := range Topics {
		if strings.EqualFold(strings.TrimSpace(s), t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown topic %q", s)
}

// Health grades a bus partition by backlog.
type Health int

const (
	Good Health = iota
	Degraded
	Critical
)

func (h Health) String() string {
	switch h {
	case Good:
		return "GOOD"
	case Degraded:
		return "DEGRADED"
	case Critical:
		return "CRITICAL"
	}
	return fmt.Sprintf("health(%d)", int(h))
}

// Worst returns the more severe of two health grades.
func Worst(a, b Health) Health {
	if b > a {
		return b
	}
	return a
}
