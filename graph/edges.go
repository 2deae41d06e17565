package graph

// EdgeKind names one typed edge of a subgraph. Ontology kinds connect type
// editions to the editions they reference; knowledge kinds connect link
// entities to their endpoints.
type EdgeKind string

const (
	// EdgeInheritsFrom points from an entity type to a parent named in its
	// allOf.
	EdgeInheritsFrom EdgeKind = "INHERITS_FROM"

	// EdgeConstrainsValuesOn points from a property type to a data type its
	// oneOf admits.
	EdgeConstrainsValuesOn EdgeKind = "CONSTRAINS_VALUES_ON"

	// EdgeConstrainsPropertiesOn points from an entity type or property
	// type to a property type it embeds.
	EdgeConstrainsPropertiesOn EdgeKind = "CONSTRAINS_PROPERTIES_ON"

	// EdgeConstrainsLinksOn points from an entity type to a link type it
	// declares.
	EdgeConstrainsLinksOn EdgeKind = "CONSTRAINS_LINKS_ON"

	// EdgeConstrainsLinkDestinationsOn points from an entity type to an
	// allowed destination type of one of its links.
	EdgeConstrainsLinkDestinationsOn EdgeKind = "CONSTRAINS_LINK_DESTINATIONS_ON"

	// EdgeHasLeftEntity connects a link entity and its left endpoint.
	EdgeHasLeftEntity EdgeKind = "HAS_LEFT_ENTITY"

	// EdgeHasRightEntity connects a link entity and its right endpoint.
	EdgeHasRightEntity EdgeKind = "HAS_RIGHT_ENTITY"
)

// EdgeDirection distinguishes traversal along an edge from traversal
// against it. Ontology edges are traversed outgoing only; knowledge edges
// go both ways (link→endpoint outgoing, entity→incident link incoming).
type EdgeDirection string

const (
	DirectionOutgoing EdgeDirection = "outgoing"
	DirectionIncoming EdgeDirection = "incoming"
)
