package temporal

import (
	"encoding/json"

	"github.com/stratumdb/stratum/errors"
)

// BoundKind discriminates the three interval bound variants.
type BoundKind string

const (
	BoundUnbounded BoundKind = "unbounded"
	BoundInclusive BoundKind = "inclusive"
	BoundExclusive BoundKind = "exclusive"
)

// Bound is one end of a temporal interval: Inclusive(t), Exclusive(t), or
// Unbounded. The variant is fixed at construction; the zero value is not a
// valid bound.
type Bound struct {
	kind  BoundKind
	limit Timestamp
}

// Unbounded returns the open bound ("still current" when used as an upper
// bound).
func Unbounded() Bound {
	return Bound{kind: BoundUnbounded}
}

// Inclusive returns a bound containing its limit.
func Inclusive(ts Timestamp) Bound {
	return Bound{kind: BoundInclusive, limit: ts}
}

// Exclusive returns a bound excluding its limit.
func Exclusive(ts Timestamp) Bound {
	return Bound{kind: BoundExclusive, limit: ts}
}

// Kind reports the bound variant.
func (b Bound) Kind() BoundKind {
	return b.kind
}

// Limit returns the bound's timestamp. Only meaningful for inclusive and
// exclusive bounds.
func (b Bound) Limit() Timestamp {
	return b.limit
}

// IsUnbounded reports whether the bound is open.
func (b Bound) IsUnbounded() bool {
	return b.kind == BoundUnbounded
}

// containsFromBelow reports whether ts satisfies b when b is a lower bound.
func (b Bound) containsFromBelow(ts Timestamp) bool {
	switch b.kind {
	case BoundUnbounded:
		return true
	case BoundInclusive:
		return ts.Compare(b.limit) >= 0
	case BoundExclusive:
		return ts.Compare(b.limit) > 0
	default:
		return false
	}
}

// containsFromAbove reports whether ts satisfies b when b is an upper bound.
func (b Bound) containsFromAbove(ts Timestamp) bool {
	switch b.kind {
	case BoundUnbounded:
		return true
	case BoundInclusive:
		return ts.Compare(b.limit) <= 0
	case BoundExclusive:
		return ts.Compare(b.limit) < 0
	default:
		return false
	}
}

type boundJSON struct {
	Kind  BoundKind  `json:"kind"`
	Limit *Timestamp `json:"limit,omitempty"`
}

// MarshalJSON renders {"kind":"inclusive","limit":...}; unbounded bounds
// carry no limit.
func (b Bound) MarshalJSON() ([]byte, error) {
	if b.kind == "" {
		return nil, errors.New("cannot marshal zero-value temporal bound")
	}
	out := boundJSON{Kind: b.kind}
	if b.kind != BoundUnbounded {
		limit := b.limit
		out.Limit = &limit
	}
	return json.Marshal(out)
}

// UnmarshalJSON validates the variant/limit pairing while decoding.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var raw boundJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decoding temporal bound")
	}
	switch raw.Kind {
	case BoundUnbounded:
		if raw.Limit != nil {
			return errors.New("unbounded temporal bound must not carry a limit")
		}
		*b = Unbounded()
	case BoundInclusive, BoundExclusive:
		if raw.Limit == nil {
			return errors.Newf("%s temporal bound requires a limit", raw.Kind)
		}
		*b = Bound{kind: raw.Kind, limit: *raw.Limit}
	default:
		return errors.Newf("unknown temporal bound kind %q", raw.Kind)
	}
	return nil
}
