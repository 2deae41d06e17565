// Package temporal implements the bitemporal axes every stored record
// version carries: half-open or unbounded intervals over decision time
// (when a fact held in the modeled world) and transaction time (when the
// system recorded it).
package temporal

import (
	"encoding/json"
	"time"

	"github.com/stratumdb/stratum/errors"
)

// Layout is the canonical timestamp format: RFC 3339, microsecond
// resolution, always UTC. Fixed width so stored strings order the same
// way the instants do.
const Layout = "2006-01-02T15:04:05.000000Z"

// Timestamp is an instant with microsecond resolution, normalized to UTC.
// Comparisons are total-order; equal instants are disambiguated by the
// store's sequence counter, never by wall clock.
type Timestamp struct {
	time.Time
}

// Now returns the current instant.
func Now() Timestamp {
	return At(time.Now())
}

// At normalizes t to a Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Microsecond)}
}

// Parse reads a timestamp in RFC 3339 form.
func Parse(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, errors.Wrapf(err, "parsing timestamp %q", s)
	}
	return At(t), nil
}

// String renders the canonical fixed-width UTC form.
func (ts Timestamp) String() string {
	return ts.Time.UTC().Format(Layout)
}

// Compare returns -1, 0, or 1 ordering ts against other.
func (ts Timestamp) Compare(other Timestamp) int {
	return ts.Time.Compare(other.Time)
}

// MarshalJSON renders the canonical string form.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

// UnmarshalJSON accepts any RFC 3339 form and normalizes it.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "timestamp must be a JSON string")
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
