package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/graph"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/query"
	"github.com/stratumdb/stratum/temporal"
)

// knowledgeClosure asserts every knowledge edge endpoint is present in the
// vertex set.
func knowledgeClosure(t *testing.T, sub *graph.Subgraph) {
	t.Helper()
	for source, adjacency := range sub.Edges.Knowledge {
		assert.Contains(t, sub.Vertices.Entities, source)
		for _, directions := range adjacency {
			for _, targets := range directions {
				for _, target := range targets {
					assert.Contains(t, sub.Vertices.Entities, target)
				}
			}
		}
	}
}

func TestResolveKnowledgeSubgraph(t *testing.T) {
	s, ownedBy, actor := setupGraphStore(t)
	ctx := context.Background()

	alice := createPerson(t, s, ownedBy, actor, "Alice")
	bob := createPerson(t, s, ownedBy, actor, "Bob")
	aliceID := alice.Metadata.RecordID.EntityID
	pause()

	knows, err := s.CreateEntity(ctx, CreateEntityParams{
		OwnedByID:    ownedBy,
		EntityTypeID: ontology.MustParseVersionedURL(testKnowsTypeURL),
		Properties:   graph.Properties{},
		LinkData: &graph.LinkData{
			LeftEntityID:  aliceID,
			RightEntityID: bob.Metadata.RecordID.EntityID,
		},
		Actor: actor,
	})
	require.NoError(t, err)

	resolver := graph.NewResolver(s, 0, nil)
	rootFilter := query.FilterForEntity(uuid.UUID(aliceID.OwnedByID), uuid.UUID(aliceID.EntityUUID))

	t.Run("zero depths resolve the root alone", func(t *testing.T) {
		sub, err := resolver.Resolve(ctx, query.RecordKindEntity, &rootFilter, graph.ZeroDepths(), temporal.QueryAxes{})
		require.NoError(t, err)
		assert.Len(t, sub.Roots, 1)
		assert.Len(t, sub.Vertices.Entities, 1)
		assert.Contains(t, sub.Vertices.Entities, alice.VertexID())
		assert.Empty(t, sub.Edges.Knowledge)
	})

	t.Run("reaches the far endpoint through the link", func(t *testing.T) {
		depths := graph.ResolveDepths{
			HasLeftEntity:  graph.BidirectionalDepth{Incoming: 1},
			HasRightEntity: graph.BidirectionalDepth{Outgoing: 1},
		}
		sub, err := resolver.Resolve(ctx, query.RecordKindEntity, &rootFilter, depths, temporal.QueryAxes{})
		require.NoError(t, err)

		assert.Contains(t, sub.Vertices.Entities, alice.VertexID())
		assert.Contains(t, sub.Vertices.Entities, knows.VertexID())
		assert.Contains(t, sub.Vertices.Entities, bob.VertexID())
		knowledgeClosure(t, sub)
	})

	t.Run("the link budget alone stops before the far endpoint", func(t *testing.T) {
		depths := graph.ResolveDepths{
			HasLeftEntity: graph.BidirectionalDepth{Incoming: 1},
		}
		sub, err := resolver.Resolve(ctx, query.RecordKindEntity, &rootFilter, depths, temporal.QueryAxes{})
		require.NoError(t, err)

		assert.Contains(t, sub.Vertices.Entities, knows.VertexID())
		assert.NotContains(t, sub.Vertices.Entities, bob.VertexID())
		knowledgeClosure(t, sub)
	})

	t.Run("a pinned view predating the link omits it", func(t *testing.T) {
		beforeLink := temporal.At(knows.Metadata.Temporal.TransactionTime.Start.Limit().Add(-time.Millisecond))
		depths := graph.ResolveDepths{
			HasLeftEntity:  graph.BidirectionalDepth{Incoming: 1},
			HasRightEntity: graph.BidirectionalDepth{Outgoing: 1},
		}
		axes := temporal.QueryAxes{DecisionTime: &beforeLink, TransactionTime: &beforeLink}
		sub, err := resolver.Resolve(ctx, query.RecordKindEntity, &rootFilter, depths, axes)
		require.NoError(t, err)

		assert.Contains(t, sub.Vertices.Entities, alice.VertexID())
		assert.NotContains(t, sub.Vertices.Entities, knows.VertexID())
		knowledgeClosure(t, sub)
	})
}
