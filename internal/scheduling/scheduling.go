// v0
// internal/scheduling/scheduling.go
package scheduling

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/patonw/elevator-sim/internal/fleet"
)

// Kinds accepted by New.
const (
	KindRoundRobin  = "round-robin"
	KindGreedy      = "greedy"
	KindInPathFirst = "in-path"
	KindFlock       = "flock"
)

// New builds the scheduler registered under kind.
func New(kind string, log *slog.Logger) (fleet.Scheduler, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindRoundRobin, "rr":
		return NewRoundRobin(log), nil
	case KindGreedy, "":
		return NewGreedy(MinIdle, log), nil
	case KindInPathFirst:
		return NewGreedy(InPathFirst, log), nil
	case KindFlock:
		return NewGreedy(Flock, log), nil
	}
	return nil, fmt.Errorf("unknown scheduler %q", kind)
}
