package graph

import (
	"sort"

	"github.com/stratumdb/stratum/ontology"
)

// VertexID identifies one subgraph vertex: an ontology type edition or a
// pinned entity version.
type VertexID interface {
	isVertexID()
}

// OntologyVertexID keys an ontology vertex by its versioned URL.
type OntologyVertexID ontology.VersionedURL

func (OntologyVertexID) isVertexID() {}

func (id OntologyVertexID) String() string {
	return ontology.VersionedURL(id).String()
}

// MarshalText renders the versioned URL.
func (id OntologyVertexID) MarshalText() ([]byte, error) {
	return ontology.VersionedURL(id).MarshalText()
}

func (EntityVertexID) isVertexID() {}

// Vertices holds a subgraph's vertex sets, each keyed by versioned
// identity.
type Vertices struct {
	DataTypes     map[ontology.VersionedURL]*ontology.DataTypeWithMetadata     `json:"dataTypes"`
	PropertyTypes map[ontology.VersionedURL]*ontology.PropertyTypeWithMetadata `json:"propertyTypes"`
	EntityTypes   map[ontology.VersionedURL]*ontology.EntityTypeWithMetadata   `json:"entityTypes"`
	Entities      map[EntityVertexID]*Entity                                    `json:"entities"`
}

// OntologyAdjacency records the typed edges at one ontology vertex:
// edge kind → direction → ordered targets.
type OntologyAdjacency map[EdgeKind]map[EdgeDirection][]ontology.VersionedURL

// KnowledgeAdjacency records the typed edges at one entity vertex.
type KnowledgeAdjacency map[EdgeKind]map[EdgeDirection][]EntityVertexID

// Edges is a subgraph's adjacency, keyed by source vertex.
type Edges struct {
	Ontology  map[ontology.VersionedURL]OntologyAdjacency `json:"ontology"`
	Knowledge map[EntityVertexID]KnowledgeAdjacency       `json:"knowledge"`
}

// Subgraph is the unit of query response: a set of vertices, the typed
// edges between them, and the depths that produced it. Every edge endpoint
// is present in the vertex set; the resolver guarantees this by
// construction.
type Subgraph struct {
	Roots    []VertexID    `json:"roots"`
	Vertices Vertices      `json:"vertices"`
	Edges    Edges         `json:"edges"`
	Depths   ResolveDepths `json:"depths"`
}

// NewSubgraph returns an empty subgraph recording the depths about to
// build it.
func NewSubgraph(depths ResolveDepths) *Subgraph {
	return &Subgraph{
		Vertices: Vertices{
			DataTypes:     map[ontology.VersionedURL]*ontology.DataTypeWithMetadata{},
			PropertyTypes: map[ontology.VersionedURL]*ontology.PropertyTypeWithMetadata{},
			EntityTypes:   map[ontology.VersionedURL]*ontology.EntityTypeWithMetadata{},
			Entities:      map[EntityVertexID]*Entity{},
		},
		Edges: Edges{
			Ontology:  map[ontology.VersionedURL]OntologyAdjacency{},
			Knowledge: map[EntityVertexID]KnowledgeAdjacency{},
		},
		Depths: depths,
	}
}

// AddDataType records a data-type vertex, keeping the first copy on
// revisit.
func (s *Subgraph) AddDataType(dt *ontology.DataTypeWithMetadata) ontology.VersionedURL {
	url := dt.Schema.ID
	if _, ok := s.Vertices.DataTypes[url]; !ok {
		s.Vertices.DataTypes[url] = dt
	}
	return url
}

// AddPropertyType records a property-type vertex.
func (s *Subgraph) AddPropertyType(pt *ontology.PropertyTypeWithMetadata) ontology.VersionedURL {
	url := pt.Schema.ID
	if _, ok := s.Vertices.PropertyTypes[url]; !ok {
		s.Vertices.PropertyTypes[url] = pt
	}
	return url
}

// AddEntityType records an entity-type vertex.
func (s *Subgraph) AddEntityType(et *ontology.EntityTypeWithMetadata) ontology.VersionedURL {
	url := et.Schema.ID
	if _, ok := s.Vertices.EntityTypes[url]; !ok {
		s.Vertices.EntityTypes[url] = et
	}
	return url
}

// AddEntity records an entity vertex pinned at its decision instant.
func (s *Subgraph) AddEntity(e *Entity) EntityVertexID {
	id := e.VertexID()
	if _, ok := s.Vertices.Entities[id]; !ok {
		s.Vertices.Entities[id] = e
	}
	return id
}

// HasOntologyVertex reports whether a type edition is present in any of
// the three ontology vertex sets.
func (s *Subgraph) HasOntologyVertex(url ontology.VersionedURL) bool {
	if _, ok := s.Vertices.DataTypes[url]; ok {
		return true
	}
	if _, ok := s.Vertices.PropertyTypes[url]; ok {
		return true
	}
	_, ok := s.Vertices.EntityTypes[url]
	return ok
}

// HasEntityVertex reports whether an entity version is present.
func (s *Subgraph) HasEntityVertex(id EntityVertexID) bool {
	_, ok := s.Vertices.Entities[id]
	return ok
}

// AddOntologyEdge records a typed edge between ontology vertices,
// collapsing repeats.
func (s *Subgraph) AddOntologyEdge(source ontology.VersionedURL, kind EdgeKind, direction EdgeDirection, target ontology.VersionedURL) {
	adjacency, ok := s.Edges.Ontology[source]
	if !ok {
		adjacency = OntologyAdjacency{}
		s.Edges.Ontology[source] = adjacency
	}
	byDirection, ok := adjacency[kind]
	if !ok {
		byDirection = map[EdgeDirection][]ontology.VersionedURL{}
		adjacency[kind] = byDirection
	}
	for _, existing := range byDirection[direction] {
		if existing == target {
			return
		}
	}
	byDirection[direction] = append(byDirection[direction], target)
}

// AddKnowledgeEdge records a typed edge between entity vertices,
// collapsing repeats.
func (s *Subgraph) AddKnowledgeEdge(source EntityVertexID, kind EdgeKind, direction EdgeDirection, target EntityVertexID) {
	adjacency, ok := s.Edges.Knowledge[source]
	if !ok {
		adjacency = KnowledgeAdjacency{}
		s.Edges.Knowledge[source] = adjacency
	}
	byDirection, ok := adjacency[kind]
	if !ok {
		byDirection = map[EdgeDirection][]EntityVertexID{}
		adjacency[kind] = byDirection
	}
	for _, existing := range byDirection[direction] {
		if existing == target {
			return
		}
	}
	byDirection[direction] = append(byDirection[direction], target)
}

// normalize sorts every edge target list so equal subgraphs render equally
// regardless of traversal order.
func (s *Subgraph) normalize() {
	for _, adjacency := range s.Edges.Ontology {
		for _, byDirection := range adjacency {
			for _, targets := range byDirection {
				sort.Slice(targets, func(i, j int) bool {
					if targets[i].Base != targets[j].Base {
						return targets[i].Base < targets[j].Base
					}
					return targets[i].Version < targets[j].Version
				})
			}
		}
	}
	for _, adjacency := range s.Edges.Knowledge {
		for _, byDirection := range adjacency {
			for _, targets := range byDirection {
				sort.Slice(targets, func(i, j int) bool {
					if targets[i].EntityID != targets[j].EntityID {
						return targets[i].EntityID.String() < targets[j].EntityID.String()
					}
					return targets[i].DecisionTime.Compare(targets[j].DecisionTime) < 0
				})
			}
		}
	}
}
