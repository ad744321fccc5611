// v0
// internal/trajectory/splice.go
package trajectory

// monotone reports whether y lies between x and z in the travel direction.
type monotone func(x, y, z int) bool

func ascending(x, y, z int) bool  { return x <= y && y <= z }
func descending(x, y, z int) bool { return x >= y && y >= z }

// Splice weaves the directed segment [start,end] into points, scanning
// forward from the current floor. It returns false when no directionally
// consistent insertion exists. In non-strict mode an end that falls past the
// last turnpoint is appended after it; strict mode fails instead.
//
// The input slice is never modified.
func Splice(current int, points []int, start, end int, strict bool) ([]int, bool) {
	if start < end {
		return splice(current, points, start, end, strict, ascending)
	}
	return splice(current, points, start, end, strict, descending)
}

func splice(current int, points []int, start, end int, strict bool, between monotone) ([]int, bool) {
	// Requests from the floor the car is standing on race with arrival handling.
	if current == start || len(points) == 0 {
		return nil, false
	}

	result := make([]int, 0, len(points)+2)
	left, right := current, points[0]
	next := 1

	for {
		if between(left, start, right) && len(result) > 0 {
			if start != left && start != right {
				result = append(result, start)
			}
			break
		}
		if next == len(points) {
			return nil, false
		}
		result = append(result, right)
		left, right = right, points[next]
		next++
	}

	for {
		if between(left, end, right) {
			if end != left && end != right {
				result = append(result, end)
			}
			break
		}
		if next == len(points) {
			if strict {
				return nil, false
			}
			return append(result, right, end), true
		}
		result = append(result, right)
		left, right = right, points[next]
		next++
	}

	result = append(result, right)
	return append(result, points[next:]...), true
}
