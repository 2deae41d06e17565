package graph

// OutgoingDepth bounds traversal along an outgoing-only edge kind.
type OutgoingDepth struct {
	Outgoing uint8 `json:"outgoing"`
}

// BidirectionalDepth bounds traversal along a knowledge edge kind in each
// direction independently.
type BidirectionalDepth struct {
	Incoming uint8 `json:"incoming"`
	Outgoing uint8 `json:"outgoing"`
}

// ResolveDepths bounds one subgraph resolution, one budget per edge kind.
// Budgets are independent: traversing an edge decrements that kind's
// budget only, so inheritance can be followed three hops while link
// constraints stop after one.
type ResolveDepths struct {
	InheritsFrom                 OutgoingDepth      `json:"inheritsFrom"`
	ConstrainsValuesOn           OutgoingDepth      `json:"constrainsValuesOn"`
	ConstrainsPropertiesOn       OutgoingDepth      `json:"constrainsPropertiesOn"`
	ConstrainsLinksOn            OutgoingDepth      `json:"constrainsLinksOn"`
	ConstrainsLinkDestinationsOn OutgoingDepth      `json:"constrainsLinkDestinationsOn"`
	HasLeftEntity                BidirectionalDepth `json:"hasLeftEntity"`
	HasRightEntity               BidirectionalDepth `json:"hasRightEntity"`
}

// ZeroDepths resolves root vertices only.
func ZeroDepths() ResolveDepths {
	return ResolveDepths{}
}

// IsZero reports whether every budget is exhausted.
func (d ResolveDepths) IsZero() bool {
	return d == ResolveDepths{}
}

// budget returns the remaining hops for one kind and direction. Ontology
// kinds have no incoming budget.
func (d ResolveDepths) budget(kind EdgeKind, direction EdgeDirection) uint8 {
	switch kind {
	case EdgeInheritsFrom:
		if direction == DirectionOutgoing {
			return d.InheritsFrom.Outgoing
		}
	case EdgeConstrainsValuesOn:
		if direction == DirectionOutgoing {
			return d.ConstrainsValuesOn.Outgoing
		}
	case EdgeConstrainsPropertiesOn:
		if direction == DirectionOutgoing {
			return d.ConstrainsPropertiesOn.Outgoing
		}
	case EdgeConstrainsLinksOn:
		if direction == DirectionOutgoing {
			return d.ConstrainsLinksOn.Outgoing
		}
	case EdgeConstrainsLinkDestinationsOn:
		if direction == DirectionOutgoing {
			return d.ConstrainsLinkDestinationsOn.Outgoing
		}
	case EdgeHasLeftEntity:
		if direction == DirectionOutgoing {
			return d.HasLeftEntity.Outgoing
		}
		return d.HasLeftEntity.Incoming
	case EdgeHasRightEntity:
		if direction == DirectionOutgoing {
			return d.HasRightEntity.Outgoing
		}
		return d.HasRightEntity.Incoming
	}
	return 0
}

// decrement returns a copy with one budget reduced by the hop just taken;
// every other budget carries over unchanged.
func (d ResolveDepths) decrement(kind EdgeKind, direction EdgeDirection) ResolveDepths {
	switch kind {
	case EdgeInheritsFrom:
		d.InheritsFrom.Outgoing--
	case EdgeConstrainsValuesOn:
		d.ConstrainsValuesOn.Outgoing--
	case EdgeConstrainsPropertiesOn:
		d.ConstrainsPropertiesOn.Outgoing--
	case EdgeConstrainsLinksOn:
		d.ConstrainsLinksOn.Outgoing--
	case EdgeConstrainsLinkDestinationsOn:
		d.ConstrainsLinkDestinationsOn.Outgoing--
	case EdgeHasLeftEntity:
		if direction == DirectionOutgoing {
			d.HasLeftEntity.Outgoing--
		} else {
			d.HasLeftEntity.Incoming--
		}
	case EdgeHasRightEntity:
		if direction == DirectionOutgoing {
			d.HasRightEntity.Outgoing--
		} else {
			d.HasRightEntity.Incoming--
		}
	}
	return d
}

// Clamped caps every budget at max, the guard applied from configuration
// before untrusted depths drive a resolution.
func (d ResolveDepths) Clamped(max uint8) ResolveDepths {
	clamp := func(v uint8) uint8 {
		if v > max {
			return max
		}
		return v
	}
	d.InheritsFrom.Outgoing = clamp(d.InheritsFrom.Outgoing)
	d.ConstrainsValuesOn.Outgoing = clamp(d.ConstrainsValuesOn.Outgoing)
	d.ConstrainsPropertiesOn.Outgoing = clamp(d.ConstrainsPropertiesOn.Outgoing)
	d.ConstrainsLinksOn.Outgoing = clamp(d.ConstrainsLinksOn.Outgoing)
	d.ConstrainsLinkDestinationsOn.Outgoing = clamp(d.ConstrainsLinkDestinationsOn.Outgoing)
	d.HasLeftEntity.Incoming = clamp(d.HasLeftEntity.Incoming)
	d.HasLeftEntity.Outgoing = clamp(d.HasLeftEntity.Outgoing)
	d.HasRightEntity.Incoming = clamp(d.HasRightEntity.Incoming)
	d.HasRightEntity.Outgoing = clamp(d.HasRightEntity.Outgoing)
	return d
}
