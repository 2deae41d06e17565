package temporal

// Axes carries the two independent intervals every stored record version
// has: when the fact held in the modeled world, and when the system
// recorded it.
type Axes struct {
	DecisionTime    Interval `json:"decisionTime"`
	TransactionTime Interval `json:"transactionTime"`
}

// Contains reports whether both intervals contain the pinned instants.
func (a Axes) Contains(p PinnedAxes) bool {
	return a.DecisionTime.Contains(p.DecisionTime) &&
		a.TransactionTime.Contains(p.TransactionTime)
}

// PinnedAxes is a fully resolved point-in-time view: one instant per axis.
type PinnedAxes struct {
	DecisionTime    Timestamp `json:"decisionTime"`
	TransactionTime Timestamp `json:"transactionTime"`
}

// QueryAxes selects the temporal view for a read. A nil axis means "now";
// Resolve produces the concrete instants a whole query then runs at, so a
// single resolution never mixes views.
type QueryAxes struct {
	DecisionTime    *Timestamp `json:"decisionTime,omitempty"`
	TransactionTime *Timestamp `json:"transactionTime,omitempty"`
}

// Resolve pins both axes, substituting now for unset ones.
func (qa QueryAxes) Resolve(now Timestamp) PinnedAxes {
	pinned := PinnedAxes{DecisionTime: now, TransactionTime: now}
	if qa.DecisionTime != nil {
		pinned.DecisionTime = *qa.DecisionTime
	}
	if qa.TransactionTime != nil {
		pinned.TransactionTime = *qa.TransactionTime
	}
	return pinned
}
