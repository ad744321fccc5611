// v0
// internal/trajectory/trajectory_test.go
package trajectory

import (
	"math/rand"
	"slices"
	"testing"
)

func manhattan(t *Trajectory) int64 {
	var sum int64
	prev := t.floor
	for _, p := range t.points {
		sum += abs(p - prev)
		prev = p
	}
	return sum
}

func stepN(tr *Trajectory, n int) *Trajectory {
	for i := 0; i < n; i++ {
		tr = tr.Step()
	}
	return tr
}

func TestIdleTrajectory(t *testing.T) {
	first := New(0, 0)
	if first.EndTime() != 0 || first.EndFloor() != 0 || first.NextFloor() != 0 {
		t.Fatalf("unexpected idle trajectory: %v", first)
	}
	second := New(10, 42)
	if second.EndTime() != 10 || second.EndFloor() != 42 || second.NextFloor() != 42 {
		t.Fatalf("unexpected idle trajectory: %v", second)
	}
}

func TestUnitTrajectory(t *testing.T) {
	first := New(0, 0).Extend(0, 1)
	second := first.Extend(1, 0)
	if first.EndTime() != 1 || first.EndFloor() != 1 || first.NextFloor() != 1 {
		t.Fatalf("unexpected first: %v", first)
	}
	if !first.ShouldStop() {
		t.Fatalf("expected stop at floor 0")
	}
	if second.EndTime() != 2 || second.EndFloor() != 0 || second.NextFloor() != 1 {
		t.Fatalf("unexpected second: %v", second)
	}
}

func TestExtendDisjoint(t *testing.T) {
	first := New(100, 20).Extend(10, 5)
	second := first.Extend(20, 31)

	if first.EndTime() != 115 || first.EndFloor() != 5 || first.NextFloor() != 19 {
		t.Fatalf("unexpected first: %v", first)
	}
	if second.EndTime() != 141 || second.EndFloor() != 31 || second.NextFloor() != 19 {
		t.Fatalf("unexpected second: %v", second)
	}
	if got := first.Turnpoints(); !slices.Equal(got, []int{10, 5}) {
		t.Fatalf("extend leaked into previous value: %v", got)
	}
}

func TestAugmentPath(t *testing.T) {
	first := New(100, 20).Augment(10, 5)
	disjoint := first.Augment(7, 22)
	if first.EndTime() != 115 || first.EndFloor() != 5 {
		t.Fatalf("unexpected first: %v", first)
	}
	if disjoint.EndTime() != 132 || disjoint.EndFloor() != 22 || disjoint.NextFloor() != 19 {
		t.Fatalf("unexpected disjoint: %v", disjoint)
	}

	// continues straight from 22 to 27 instead of backtracking to 15
	overlap := disjoint.Augment(15, 27)
	if overlap.EndTime() != 137 || overlap.EndFloor() != 27 || overlap.NextFloor() != 19 {
		t.Fatalf("unexpected overlap: %v", overlap)
	}
}

func TestStepping(t *testing.T) {
	cur := New(100, 20).Extend(10, 5).Extend(20, 31).Step()
	if cur.Floor() != 19 || cur.Time() != 101 {
		t.Fatalf("unexpected position: %v", cur)
	}
	if !slices.Equal(cur.Turnpoints(), []int{10, 5, 20, 31}) {
		t.Fatalf("unexpected turnpoints: %v", cur.Turnpoints())
	}
	if cur.EndTime() != 141 || cur.NextFloor() != 18 {
		t.Fatalf("unexpected plan: %v", cur)
	}

	cur = stepN(cur, 9)
	if cur.Floor() != 10 || cur.Time() != 110 || !cur.ShouldStop() {
		t.Fatalf("expected stop at 10, got %v", cur)
	}
	// reached turnpoints are only dropped when the car leaves them
	if !slices.Equal(cur.Turnpoints(), []int{10, 5, 20, 31}) {
		t.Fatalf("unexpected turnpoints at 10: %v", cur.Turnpoints())
	}

	cur = cur.Step()
	if cur.Floor() != 9 || cur.Time() != 111 || cur.ShouldStop() {
		t.Fatalf("unexpected position after leaving 10: %v", cur)
	}
	if !slices.Equal(cur.Turnpoints(), []int{5, 20, 31}) {
		t.Fatalf("unexpected turnpoints: %v", cur.Turnpoints())
	}

	cur = stepN(cur, 4)
	if cur.Floor() != 5 || cur.Time() != 115 || !cur.ShouldStop() {
		t.Fatalf("expected stop at 5, got %v", cur)
	}

	cur = stepN(cur, 20)
	if cur.Floor() != 25 || cur.Time() != 135 || !slices.Equal(cur.Turnpoints(), []int{31}) {
		t.Fatalf("unexpected position: %v", cur)
	}

	cur = stepN(cur, 6)
	if cur.Floor() != 31 || cur.Time() != 141 || !slices.Equal(cur.Turnpoints(), []int{31}) {
		t.Fatalf("expected arrival at 31, got %v", cur)
	}

	cur = stepN(cur, 9)
	if cur.Floor() != 31 || cur.Time() != 150 || len(cur.Turnpoints()) != 0 {
		t.Fatalf("expected idle at 31, got %v", cur)
	}
}

func TestStayStepIsNoop(t *testing.T) {
	cur := New(7, 12)
	for i := 0; i < 5; i++ {
		cur = cur.Step()
		if cur.Floor() != 12 || cur.TimeLeft() != 0 {
			t.Fatalf("idle car moved: %v", cur)
		}
	}
	if cur.Time() != 12 {
		t.Fatalf("expected time 12, got %d", cur.Time())
	}
}

func TestIncludes(t *testing.T) {
	tr := New(100, 20).Extend(10, 5).Extend(20, 31)
	cases := []struct {
		start, end int
		want       bool
	}{
		{10, 5, true},
		{5, 10, true},
		{9, 2, false},
		{5, 30, true},
		{30, 20, false},
	}
	for _, tc := range cases {
		if got := tr.Includes(tc.start, tc.end); got != tc.want {
			t.Fatalf("includes(%d,%d): expected %v, got %v", tc.start, tc.end, tc.want, got)
		}
	}
}

func TestInsertSegmentRejectsCurrentFloor(t *testing.T) {
	tr := New(0, 4).Extend(8, 12)
	if _, ok := tr.InsertSegment(4, 9); ok {
		t.Fatalf("expected splice from the current floor to fail")
	}
	if _, ok := New(0, 4).InsertSegment(5, 9); ok {
		t.Fatalf("expected splice into an empty path to fail")
	}
	if _, ok := tr.AugmentFrom(4, 9); ok {
		t.Fatalf("expected AugmentFrom to refuse the current floor")
	}
}

func TestGoHome(t *testing.T) {
	start := NewHoming(21, 100, 20).Extend(10, 5).Extend(20, 31)
	if start.TimeUntilIdle() != 51 {
		t.Fatalf("expected 51 ticks until idle, got %d", start.TimeUntilIdle())
	}

	cur := start.Step()
	if cur.Floor() != 19 || cur.Time() != 101 || cur.EndTime() != 141 || cur.NextFloor() != 18 {
		t.Fatalf("unexpected position: %v", cur)
	}

	cur = stepN(cur, 9)
	if cur.Floor() != 10 || cur.Time() != 110 || !cur.ShouldStop() || cur.TimeUntilIdle() != 41 {
		t.Fatalf("unexpected state at 10: %v until idle %d", cur, cur.TimeUntilIdle())
	}

	cur = stepN(cur, 31)
	if cur.Floor() != 31 || cur.Time() != 141 || !cur.ShouldStop() || cur.TimeUntilIdle() != 10 {
		t.Fatalf("unexpected state at 31: %v until idle %d", cur, cur.TimeUntilIdle())
	}
	if cur.NextFloor() != 30 {
		t.Fatalf("expected to head home via 30, got %d", cur.NextFloor())
	}

	cur = stepN(cur, 10)
	if cur.Floor() != 21 || cur.Time() != 151 {
		t.Fatalf("expected home at 151, got %v", cur)
	}
	cur = stepN(cur, 10)
	if cur.Floor() != 21 || cur.Time() != 161 || cur.TimeUntilIdle() != 0 {
		t.Fatalf("expected parked at home, got %v", cur)
	}

	if start.TimeUntilIdle() != 51 {
		t.Fatalf("original trajectory mutated: %v", start)
	}
}

func TestRemainingTimeMatchesTurnpoints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		var tr *Trajectory
		if run%2 == 0 {
			tr = New(0, rng.Intn(40))
		} else {
			tr = NewHoming(rng.Intn(40), 0, rng.Intn(40))
		}
		for op := 0; op < 200; op++ {
			start, end := rng.Intn(40), rng.Intn(40)
			for end == start {
				end = rng.Intn(40)
			}
			switch rng.Intn(4) {
			case 0:
				tr = tr.Extend(start, end)
			case 1:
				extended := tr.Extend(start, end)
				tr = tr.Augment(start, end)
				if tr.TimeLeft() > extended.TimeLeft() {
					t.Fatalf("augment slower than extend: %d > %d", tr.TimeLeft(), extended.TimeLeft())
				}
			default:
				tr = tr.Step()
			}
			if got := manhattan(tr); got != tr.TimeLeft() {
				t.Fatalf("run %d op %d: remaining %d, turnpoints sum %d (%v)", run, op, tr.TimeLeft(), got, tr)
			}
		}
	}
}
