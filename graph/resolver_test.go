package graph

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/provenance"
	"github.com/stratumdb/stratum/query"
	"github.com/stratumdb/stratum/temporal"
)

// fakeReader is a miniature in-memory store for resolver tests: root
// queries evaluate filters with the query engine, point reads hit maps.
type fakeReader struct {
	dataTypes     map[ontology.VersionedURL]*ontology.DataTypeWithMetadata
	propertyTypes map[ontology.VersionedURL]*ontology.PropertyTypeWithMetadata
	entityTypes   map[ontology.VersionedURL]*ontology.EntityTypeWithMetadata
	entities      map[EntityID]*Entity
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		dataTypes:     map[ontology.VersionedURL]*ontology.DataTypeWithMetadata{},
		propertyTypes: map[ontology.VersionedURL]*ontology.PropertyTypeWithMetadata{},
		entityTypes:   map[ontology.VersionedURL]*ontology.EntityTypeWithMetadata{},
		entities:      map[EntityID]*Entity{},
	}
}

// typeRecord adapts a type edition to filter evaluation.
type typeRecord struct {
	id ontology.VersionedURL
}

func (r typeRecord) ResolveAttribute(path query.Path) (any, bool) {
	switch path.Root() {
	case query.SegmentBaseURL:
		return r.id.Base, true
	case query.SegmentVersion:
		return r.id.Version, true
	case query.SegmentVersionedURL:
		return r.id, true
	}
	return nil, false
}

func (r typeRecord) IsLatestVersion() bool { return true }

func (f *fakeReader) QueryDataTypesAt(_ context.Context, filter *query.Filter, _ temporal.PinnedAxes) ([]*ontology.DataTypeWithMetadata, error) {
	var out []*ontology.DataTypeWithMetadata
	for url, dt := range f.dataTypes {
		ok, err := query.Evaluate(filter, typeRecord{id: url})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, dt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Schema.ID.String() < out[j].Schema.ID.String() })
	return out, nil
}

func (f *fakeReader) QueryPropertyTypesAt(_ context.Context, filter *query.Filter, _ temporal.PinnedAxes) ([]*ontology.PropertyTypeWithMetadata, error) {
	var out []*ontology.PropertyTypeWithMetadata
	for url, pt := range f.propertyTypes {
		ok, err := query.Evaluate(filter, typeRecord{id: url})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, pt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Schema.ID.String() < out[j].Schema.ID.String() })
	return out, nil
}

func (f *fakeReader) QueryEntityTypesAt(_ context.Context, filter *query.Filter, _ temporal.PinnedAxes) ([]*ontology.EntityTypeWithMetadata, error) {
	var out []*ontology.EntityTypeWithMetadata
	for url, et := range f.entityTypes {
		ok, err := query.Evaluate(filter, typeRecord{id: url})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, et)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Schema.ID.String() < out[j].Schema.ID.String() })
	return out, nil
}

func (f *fakeReader) QueryEntitiesAt(_ context.Context, filter *query.Filter, _ temporal.PinnedAxes) ([]*Entity, error) {
	var out []*Entity
	for _, e := range f.entities {
		ok, err := query.Evaluate(filter, e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.RecordID.EntityID.String() < out[j].Metadata.RecordID.EntityID.String()
	})
	return out, nil
}

func (f *fakeReader) DataTypeAt(_ context.Context, url ontology.VersionedURL, _ temporal.PinnedAxes) (*ontology.DataTypeWithMetadata, error) {
	dt, ok := f.dataTypes[url]
	if !ok {
		return nil, errors.NewNotFoundError("data type %s", url)
	}
	return dt, nil
}

func (f *fakeReader) PropertyTypeAt(_ context.Context, url ontology.VersionedURL, _ temporal.PinnedAxes) (*ontology.PropertyTypeWithMetadata, error) {
	pt, ok := f.propertyTypes[url]
	if !ok {
		return nil, errors.NewNotFoundError("property type %s", url)
	}
	return pt, nil
}

func (f *fakeReader) EntityTypeAt(_ context.Context, url ontology.VersionedURL, _ temporal.PinnedAxes) (*ontology.EntityTypeWithMetadata, error) {
	et, ok := f.entityTypes[url]
	if !ok {
		return nil, errors.NewNotFoundError("entity type %s", url)
	}
	return et, nil
}

func (f *fakeReader) EntityAt(_ context.Context, id EntityID, _ temporal.PinnedAxes) (*Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return nil, errors.NewNotFoundError("entity %s", id)
	}
	return e, nil
}

func (f *fakeReader) LinksByLeftEntityAt(_ context.Context, id EntityID, _ temporal.PinnedAxes) ([]*Entity, error) {
	return f.incidentLinks(func(l *LinkData) bool { return l.LeftEntityID == id }), nil
}

func (f *fakeReader) LinksByRightEntityAt(_ context.Context, id EntityID, _ temporal.PinnedAxes) ([]*Entity, error) {
	return f.incidentLinks(func(l *LinkData) bool { return l.RightEntityID == id }), nil
}

func (f *fakeReader) incidentLinks(match func(*LinkData) bool) []*Entity {
	var out []*Entity
	for _, e := range f.entities {
		if e.LinkData != nil && match(e.LinkData) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.RecordID.EntityID.String() < out[j].Metadata.RecordID.EntityID.String()
	})
	return out
}

// Fixture builders.

func fakeEntityType(url string, mutate func(*ontology.EntityType)) *ontology.EntityTypeWithMetadata {
	schema := ontology.EntityType{
		Kind:  ontology.EntityTypeKind,
		ID:    ontology.MustParseVersionedURL(url),
		Type:  ontology.JSONTypeObject,
		Title: "Test",
	}
	if mutate != nil {
		mutate(&schema)
	}
	return &ontology.EntityTypeWithMetadata{Schema: schema}
}

func fakePropertyType(url string, dataTypeURL string) *ontology.PropertyTypeWithMetadata {
	return &ontology.PropertyTypeWithMetadata{Schema: ontology.PropertyType{
		Kind:  ontology.PropertyTypeKind,
		ID:    ontology.MustParseVersionedURL(url),
		Title: "Test",
		OneOf: []ontology.PropertyValue{{
			DataTypeRef: &ontology.TypeReference{URL: ontology.MustParseVersionedURL(dataTypeURL)},
		}},
	}}
}

func fakeDataType(url string) *ontology.DataTypeWithMetadata {
	return &ontology.DataTypeWithMetadata{Schema: ontology.DataType{
		Kind:  ontology.DataTypeKind,
		ID:    ontology.MustParseVersionedURL(url),
		Title: "Test",
		Type:  ontology.JSONTypeString,
	}}
}

func fakeEntity(owner provenance.OwnedByID, entityUUID string, typeURL string, link *LinkData) *Entity {
	now, _ := temporal.Parse("2024-03-01T10:00:00.000000Z")
	return &Entity{
		Properties: Properties{},
		LinkData:   link,
		Metadata: EntityMetadata{
			RecordID: EntityRecordID{
				EntityID:  NewEntityID(owner, NewEntityUUID(uuid.MustParse(entityUUID))),
				EditionID: NewEditionID(),
			},
			EntityTypeID: ontology.MustParseVersionedURL(typeURL),
			Temporal: temporal.Axes{
				DecisionTime:    temporal.NewOpenInterval(now),
				TransactionTime: temporal.NewOpenInterval(now),
			},
		},
	}
}

// assertClosure checks the closure invariant: every edge endpoint, source
// and target alike, is present in the vertex set.
func assertClosure(t *testing.T, sub *Subgraph) {
	t.Helper()
	for source, adjacency := range sub.Edges.Ontology {
		assert.True(t, sub.HasOntologyVertex(source), "edge source %s missing from vertices", source)
		for _, byDirection := range adjacency {
			for _, targets := range byDirection {
				for _, target := range targets {
					assert.True(t, sub.HasOntologyVertex(target), "edge target %s missing from vertices", target)
				}
			}
		}
	}
	for source, adjacency := range sub.Edges.Knowledge {
		assert.True(t, sub.HasEntityVertex(source), "edge source %s missing from vertices", source)
		for _, byDirection := range adjacency {
			for _, targets := range byDirection {
				for _, target := range targets {
					assert.True(t, sub.HasEntityVertex(target), "edge target %s missing from vertices", target)
				}
			}
		}
	}
}

const (
	agentTypeURL      = "https://example.com/types/entity-type/agent/v/1"
	actorTypeURL      = "https://example.com/types/entity-type/actor/v/1"
	personTypeURL     = "https://example.com/types/entity-type/person/v/1"
	friendshipTypeURL = "https://example.com/types/entity-type/friendship/v/1"
	nameTypeURL       = "https://example.com/types/property-type/name/v/1"
	textTypeURL       = "https://example.com/types/data-type/text/v/1"
)

// ontologyFixture wires person -> actor -> agent inheritance, a name
// property on person backed by the text data type, and a friendship link
// from person to person.
func ontologyFixture() *fakeReader {
	reader := newFakeReader()
	reader.dataTypes[ontology.MustParseVersionedURL(textTypeURL)] = fakeDataType(textTypeURL)
	reader.propertyTypes[ontology.MustParseVersionedURL(nameTypeURL)] = fakePropertyType(nameTypeURL, textTypeURL)

	reader.entityTypes[ontology.MustParseVersionedURL(agentTypeURL)] = fakeEntityType(agentTypeURL, nil)
	reader.entityTypes[ontology.MustParseVersionedURL(actorTypeURL)] = fakeEntityType(actorTypeURL, func(et *ontology.EntityType) {
		et.AllOf = []ontology.TypeReference{{URL: ontology.MustParseVersionedURL(agentTypeURL)}}
	})
	reader.entityTypes[ontology.MustParseVersionedURL(friendshipTypeURL)] = fakeEntityType(friendshipTypeURL, nil)
	reader.entityTypes[ontology.MustParseVersionedURL(personTypeURL)] = fakeEntityType(personTypeURL, func(et *ontology.EntityType) {
		name := ontology.MustParseVersionedURL(nameTypeURL)
		et.AllOf = []ontology.TypeReference{{URL: ontology.MustParseVersionedURL(actorTypeURL)}}
		et.Properties = map[ontology.BaseURL]ontology.PropertySlot{
			name.Base: {Ref: &ontology.TypeReference{URL: name}},
		}
		et.Links = map[ontology.VersionedURL]ontology.LinkSchema{
			ontology.MustParseVersionedURL(friendshipTypeURL): {
				Items: &ontology.EntityTypeReferences{
					OneOf: []ontology.TypeReference{{URL: ontology.MustParseVersionedURL(personTypeURL)}},
				},
			},
		}
	})
	return reader
}

// TestResolveDepthIndependence verifies budgets are per edge kind: two
// inheritance hops are followed while link-constraint edges stay
// untraversed, even though both kinds leave the same root.
func TestResolveDepthIndependence(t *testing.T) {
	resolver := NewResolver(ontologyFixture(), 0, nil)

	rootFilter := query.FilterForVersionedURL(query.RecordKindEntityType, ontology.MustParseVersionedURL(personTypeURL))
	depths := ResolveDepths{
		InheritsFrom: OutgoingDepth{Outgoing: 2},
	}

	sub, err := resolver.Resolve(context.Background(), query.RecordKindEntityType, &rootFilter, depths, temporal.QueryAxes{})
	require.NoError(t, err)

	assert.Contains(t, sub.Vertices.EntityTypes, ontology.MustParseVersionedURL(personTypeURL))
	assert.Contains(t, sub.Vertices.EntityTypes, ontology.MustParseVersionedURL(actorTypeURL), "one inheritance hop")
	assert.Contains(t, sub.Vertices.EntityTypes, ontology.MustParseVersionedURL(agentTypeURL), "two inheritance hops")

	assert.NotContains(t, sub.Vertices.EntityTypes, ontology.MustParseVersionedURL(friendshipTypeURL), "link kind budget is zero")
	assert.Empty(t, sub.Vertices.PropertyTypes, "property kind budget is zero")
	assert.Empty(t, sub.Vertices.DataTypes)
	assertClosure(t, sub)
}

// TestResolveOntologyClosure resolves every ontology kind from one root
// and checks the closure invariant plus the expected edge kinds.
func TestResolveOntologyClosure(t *testing.T) {
	resolver := NewResolver(ontologyFixture(), 0, nil)

	rootFilter := query.FilterForVersionedURL(query.RecordKindEntityType, ontology.MustParseVersionedURL(personTypeURL))
	depths := ResolveDepths{
		InheritsFrom:                 OutgoingDepth{Outgoing: 2},
		ConstrainsValuesOn:           OutgoingDepth{Outgoing: 1},
		ConstrainsPropertiesOn:       OutgoingDepth{Outgoing: 1},
		ConstrainsLinksOn:            OutgoingDepth{Outgoing: 1},
		ConstrainsLinkDestinationsOn: OutgoingDepth{Outgoing: 1},
	}

	sub, err := resolver.Resolve(context.Background(), query.RecordKindEntityType, &rootFilter, depths, temporal.QueryAxes{})
	require.NoError(t, err)

	person := ontology.MustParseVersionedURL(personTypeURL)
	assert.Len(t, sub.Roots, 1)
	assert.Contains(t, sub.Vertices.PropertyTypes, ontology.MustParseVersionedURL(nameTypeURL))
	assert.Contains(t, sub.Vertices.EntityTypes, ontology.MustParseVersionedURL(friendshipTypeURL))

	adjacency := sub.Edges.Ontology[person]
	require.NotNil(t, adjacency)
	assert.Equal(t, []ontology.VersionedURL{ontology.MustParseVersionedURL(actorTypeURL)},
		adjacency[EdgeInheritsFrom][DirectionOutgoing])
	assert.Equal(t, []ontology.VersionedURL{ontology.MustParseVersionedURL(nameTypeURL)},
		adjacency[EdgeConstrainsPropertiesOn][DirectionOutgoing])
	assert.Equal(t, []ontology.VersionedURL{ontology.MustParseVersionedURL(friendshipTypeURL)},
		adjacency[EdgeConstrainsLinksOn][DirectionOutgoing])
	assert.Equal(t, []ontology.VersionedURL{person},
		adjacency[EdgeConstrainsLinkDestinationsOn][DirectionOutgoing])

	// The name property type constrains values on text, one hop further.
	nameAdjacency := sub.Edges.Ontology[ontology.MustParseVersionedURL(nameTypeURL)]
	require.NotNil(t, nameAdjacency)
	assert.Equal(t, []ontology.VersionedURL{ontology.MustParseVersionedURL(textTypeURL)},
		nameAdjacency[EdgeConstrainsValuesOn][DirectionOutgoing])

	assertClosure(t, sub)
}

// TestResolveCycleTerminates builds mutual inheritance and verifies the
// depth budget alone terminates traversal with both vertices and both
// edges present.
func TestResolveCycleTerminates(t *testing.T) {
	reader := newFakeReader()
	a := "https://example.com/types/entity-type/a/v/1"
	b := "https://example.com/types/entity-type/b/v/1"
	reader.entityTypes[ontology.MustParseVersionedURL(a)] = fakeEntityType(a, func(et *ontology.EntityType) {
		et.AllOf = []ontology.TypeReference{{URL: ontology.MustParseVersionedURL(b)}}
	})
	reader.entityTypes[ontology.MustParseVersionedURL(b)] = fakeEntityType(b, func(et *ontology.EntityType) {
		et.AllOf = []ontology.TypeReference{{URL: ontology.MustParseVersionedURL(a)}}
	})

	resolver := NewResolver(reader, 0, nil)
	rootFilter := query.FilterForVersionedURL(query.RecordKindEntityType, ontology.MustParseVersionedURL(a))

	sub, err := resolver.Resolve(context.Background(), query.RecordKindEntityType, &rootFilter,
		ResolveDepths{InheritsFrom: OutgoingDepth{Outgoing: 5}}, temporal.QueryAxes{})
	require.NoError(t, err)

	assert.Len(t, sub.Vertices.EntityTypes, 2)
	assert.Equal(t, []ontology.VersionedURL{ontology.MustParseVersionedURL(b)},
		sub.Edges.Ontology[ontology.MustParseVersionedURL(a)][EdgeInheritsFrom][DirectionOutgoing])
	assert.Equal(t, []ontology.VersionedURL{ontology.MustParseVersionedURL(a)},
		sub.Edges.Ontology[ontology.MustParseVersionedURL(b)][EdgeInheritsFrom][DirectionOutgoing])
	assertClosure(t, sub)
}

// TestResolveKnowledgeEdges verifies link traversal in both directions:
// from an entity to its incident links, and from a link to its endpoints.
func TestResolveKnowledgeEdges(t *testing.T) {
	reader := ontologyFixture()
	owner := provenance.NewOwnedByID(uuid.MustParse("6a8f2f30-4a5e-4b8e-9d9d-111111111111"))

	alice := fakeEntity(owner, "aaaaaaaa-0000-0000-0000-000000000001", personTypeURL, nil)
	bob := fakeEntity(owner, "aaaaaaaa-0000-0000-0000-000000000002", personTypeURL, nil)
	friendship := fakeEntity(owner, "aaaaaaaa-0000-0000-0000-000000000003", friendshipTypeURL, &LinkData{
		LeftEntityID:  alice.Metadata.RecordID.EntityID,
		RightEntityID: bob.Metadata.RecordID.EntityID,
	})
	for _, e := range []*Entity{alice, bob, friendship} {
		reader.entities[e.Metadata.RecordID.EntityID] = e
	}

	resolver := NewResolver(reader, 0, nil)
	rootFilter := query.FilterForEntity(
		uuid.UUID(owner),
		uuid.UUID(alice.Metadata.RecordID.EntityID.EntityUUID),
	)
	depths := ResolveDepths{
		HasLeftEntity:  BidirectionalDepth{Incoming: 1, Outgoing: 1},
		HasRightEntity: BidirectionalDepth{Incoming: 0, Outgoing: 1},
	}

	sub, err := resolver.Resolve(context.Background(), query.RecordKindEntity, &rootFilter, depths, temporal.QueryAxes{})
	require.NoError(t, err)

	require.Len(t, sub.Roots, 1)
	assert.Len(t, sub.Vertices.Entities, 3, "root, incident link, and far endpoint")

	aliceID := alice.VertexID()
	linkID := friendship.VertexID()
	bobID := bob.VertexID()

	assert.Equal(t, []EntityVertexID{linkID},
		sub.Edges.Knowledge[aliceID][EdgeHasLeftEntity][DirectionIncoming])
	assert.Equal(t, []EntityVertexID{aliceID},
		sub.Edges.Knowledge[linkID][EdgeHasLeftEntity][DirectionOutgoing])
	assert.Equal(t, []EntityVertexID{bobID},
		sub.Edges.Knowledge[linkID][EdgeHasRightEntity][DirectionOutgoing])
	assertClosure(t, sub)
}

// TestResolveRootsOnly verifies zero depths return bare roots with no
// edges.
func TestResolveRootsOnly(t *testing.T) {
	resolver := NewResolver(ontologyFixture(), 0, nil)
	rootFilter := query.FilterForVersionedURL(query.RecordKindEntityType, ontology.MustParseVersionedURL(personTypeURL))

	sub, err := resolver.Resolve(context.Background(), query.RecordKindEntityType, &rootFilter, ZeroDepths(), temporal.QueryAxes{})
	require.NoError(t, err)

	assert.Len(t, sub.Vertices.EntityTypes, 1)
	assert.Empty(t, sub.Edges.Ontology)
	assert.Empty(t, sub.Edges.Knowledge)
}

// TestResolveMissingReferenceOmitted verifies a dangling reference drops
// the vertex and its edge instead of failing the resolution.
func TestResolveMissingReferenceOmitted(t *testing.T) {
	reader := ontologyFixture()
	delete(reader.entityTypes, ontology.MustParseVersionedURL(agentTypeURL))

	resolver := NewResolver(reader, 0, nil)
	rootFilter := query.FilterForVersionedURL(query.RecordKindEntityType, ontology.MustParseVersionedURL(personTypeURL))

	sub, err := resolver.Resolve(context.Background(), query.RecordKindEntityType, &rootFilter,
		ResolveDepths{InheritsFrom: OutgoingDepth{Outgoing: 3}}, temporal.QueryAxes{})
	require.NoError(t, err)

	actor := ontology.MustParseVersionedURL(actorTypeURL)
	assert.Contains(t, sub.Vertices.EntityTypes, actor)
	assert.NotContains(t, sub.Vertices.EntityTypes, ontology.MustParseVersionedURL(agentTypeURL))
	assert.Empty(t, sub.Edges.Ontology[actor], "no dangling edge toward the missing parent")
	assertClosure(t, sub)
}

// TestResolveClampsDepths verifies the configured cap bounds caller
// budgets.
func TestResolveClampsDepths(t *testing.T) {
	resolver := NewResolver(ontologyFixture(), 1, nil)
	rootFilter := query.FilterForVersionedURL(query.RecordKindEntityType, ontology.MustParseVersionedURL(personTypeURL))

	sub, err := resolver.Resolve(context.Background(), query.RecordKindEntityType, &rootFilter,
		ResolveDepths{InheritsFrom: OutgoingDepth{Outgoing: 200}}, temporal.QueryAxes{})
	require.NoError(t, err)

	assert.Contains(t, sub.Vertices.EntityTypes, ontology.MustParseVersionedURL(actorTypeURL))
	assert.NotContains(t, sub.Vertices.EntityTypes, ontology.MustParseVersionedURL(agentTypeURL),
		"second hop exceeds the configured cap")
	assert.Equal(t, uint8(1), sub.Depths.InheritsFrom.Outgoing, "subgraph records the clamped depths")
}

// TestResolveBadPathFailsFast verifies unresolvable filter paths fail
// before any storage read.
func TestResolveBadPathFailsFast(t *testing.T) {
	resolver := NewResolver(newFakeReader(), 0, nil)

	var filter query.Filter
	require.NoError(t, json.Unmarshal([]byte(`{"equal":[{"path":["nonsense"]},{"parameter":"x"}]}`), &filter))

	_, err := resolver.Resolve(context.Background(), query.RecordKindEntityType, &filter, ZeroDepths(), temporal.QueryAxes{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidPath)
}
