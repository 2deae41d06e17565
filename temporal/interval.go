package temporal

import (
	"fmt"

	"github.com/stratumdb/stratum/errors"
)

// Interval is a temporal interval between two bounds. The canonical stored
// form is half-open: inclusive start, exclusive or unbounded end, so
// adjacent versions share a boundary instant without overlapping.
type Interval struct {
	Start Bound `json:"start"`
	End   Bound `json:"end"`
}

// NewInterval builds an interval, rejecting inverted bounds. Empty
// intervals (equal limits with an exclusive side) are permitted: closing a
// version at its own opening instant is a legitimate race outcome.
func NewInterval(start, end Bound) (Interval, error) {
	if start.Kind() == "" || end.Kind() == "" {
		return Interval{}, errors.New("interval bounds must be constructed, not zero values")
	}
	if !start.IsUnbounded() && !end.IsUnbounded() && start.Limit().Compare(end.Limit()) > 0 {
		return Interval{}, errors.Newf("inverted interval: start %s after end %s",
			start.Limit(), end.Limit())
	}
	return Interval{Start: start, End: end}, nil
}

// NewOpenInterval returns [from, unbounded) — the shape of a freshly
// opened version.
func NewOpenInterval(from Timestamp) Interval {
	return Interval{Start: Inclusive(from), End: Unbounded()}
}

// ClosedAt returns a copy of the interval with its end set to Exclusive(at),
// the shape a version takes when superseded at that instant.
func (iv Interval) ClosedAt(at Timestamp) (Interval, error) {
	if !iv.IsOpen() {
		return Interval{}, errors.New("interval is already closed")
	}
	return NewInterval(iv.Start, Exclusive(at))
}

// IsOpen reports whether the interval's end is unbounded (still current).
func (iv Interval) IsOpen() bool {
	return iv.End.IsUnbounded()
}

// Contains reports whether ts lies within the interval.
func (iv Interval) Contains(ts Timestamp) bool {
	return iv.Start.containsFromBelow(ts) && iv.End.containsFromAbove(ts)
}

// Overlaps reports whether the two intervals share at least one instant.
func (iv Interval) Overlaps(other Interval) bool {
	return startsBeforeEndOf(iv.Start, other.End) && startsBeforeEndOf(other.Start, iv.End)
}

// startsBeforeEndOf reports whether some instant satisfies both the lower
// bound s and the upper bound e.
func startsBeforeEndOf(s, e Bound) bool {
	if s.IsUnbounded() || e.IsUnbounded() {
		return true
	}
	switch c := s.Limit().Compare(e.Limit()); {
	case c < 0:
		return true
	case c > 0:
		return false
	default:
		// Equal limits touch only when both sides include the instant.
		return s.Kind() == BoundInclusive && e.Kind() == BoundInclusive
	}
}

// String renders interval notation, e.g. "[2024-03-01T00:00:00.000000Z, ∞)".
func (iv Interval) String() string {
	var lb, start, end, rb string

	switch iv.Start.Kind() {
	case BoundInclusive:
		lb, start = "[", iv.Start.Limit().String()
	case BoundExclusive:
		lb, start = "(", iv.Start.Limit().String()
	default:
		lb, start = "(", "-∞"
	}

	switch iv.End.Kind() {
	case BoundInclusive:
		rb, end = "]", iv.End.Limit().String()
	case BoundExclusive:
		rb, end = ")", iv.End.Limit().String()
	default:
		rb, end = ")", "∞"
	}

	return fmt.Sprintf("%s%s, %s%s", lb, start, end, rb)
}
