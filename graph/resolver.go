package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/query"
	"github.com/stratumdb/stratum/temporal"
)

// DefaultMaxDepth caps per-edge-kind budgets when configuration supplies
// no limit.
const DefaultMaxDepth = 16

// Reader is the store surface the resolver traverses: root queries plus
// pinned point reads, all at one resolved snapshot so a resolution never
// observes a mutation mid-traversal.
type Reader interface {
	QueryDataTypesAt(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes) ([]*ontology.DataTypeWithMetadata, error)
	QueryPropertyTypesAt(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes) ([]*ontology.PropertyTypeWithMetadata, error)
	QueryEntityTypesAt(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes) ([]*ontology.EntityTypeWithMetadata, error)
	QueryEntitiesAt(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes) ([]*Entity, error)

	DataTypeAt(ctx context.Context, url ontology.VersionedURL, at temporal.PinnedAxes) (*ontology.DataTypeWithMetadata, error)
	PropertyTypeAt(ctx context.Context, url ontology.VersionedURL, at temporal.PinnedAxes) (*ontology.PropertyTypeWithMetadata, error)
	EntityTypeAt(ctx context.Context, url ontology.VersionedURL, at temporal.PinnedAxes) (*ontology.EntityTypeWithMetadata, error)
	EntityAt(ctx context.Context, id EntityID, at temporal.PinnedAxes) (*Entity, error)

	// LinksByLeftEntityAt and LinksByRightEntityAt list the link entities
	// whose given endpoint is id, pinned at the same snapshot.
	LinksByLeftEntityAt(ctx context.Context, id EntityID, at temporal.PinnedAxes) ([]*Entity, error)
	LinksByRightEntityAt(ctx context.Context, id EntityID, at temporal.PinnedAxes) ([]*Entity, error)
}

// Resolver assembles subgraphs by bounded traversal outward from filtered
// roots. It only reads; the store remains the sole writer.
type Resolver struct {
	reader   Reader
	maxDepth uint8
	log      *zap.SugaredLogger
}

// NewResolver wires a resolver over a snapshot reader. maxDepth caps every
// per-kind budget, zero meaning DefaultMaxDepth; a nil log falls back to
// the global logger.
func NewResolver(reader Reader, maxDepth uint8, log *zap.SugaredLogger) *Resolver {
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}
	if log == nil {
		log = logger.Named("resolver")
	}
	return &Resolver{reader: reader, maxDepth: maxDepth, log: log}
}

// Resolve selects root records of one kind with a filter, then assembles
// the bounded closure around them. The filter is resolved for the root
// kind before any read, so malformed paths fail fast; axes pin the
// snapshot every vertex is read at. Referenced records with no version at
// that snapshot are omitted together with their edges. Cycles terminate by
// the depth budgets alone: every hop decrements the traversed kind's
// budget.
func (r *Resolver) Resolve(ctx context.Context, kind query.RecordKind, rootFilter *query.Filter, depths ResolveDepths, axes temporal.QueryAxes) (*Subgraph, error) {
	if err := rootFilter.Resolve(kind); err != nil {
		return nil, err
	}
	at := axes.Resolve(temporal.Now())
	depths = depths.Clamped(r.maxDepth)

	sub := NewSubgraph(depths)
	t := &traversal{reader: r.reader, at: at, sub: sub}

	switch kind {
	case query.RecordKindDataType:
		roots, err := r.reader.QueryDataTypesAt(ctx, rootFilter, at)
		if err != nil {
			return nil, err
		}
		for _, root := range roots {
			sub.Roots = append(sub.Roots, OntologyVertexID(sub.AddDataType(root)))
			// Data types are terminal: nothing to traverse.
		}

	case query.RecordKindPropertyType:
		roots, err := r.reader.QueryPropertyTypesAt(ctx, rootFilter, at)
		if err != nil {
			return nil, err
		}
		for _, root := range roots {
			sub.Roots = append(sub.Roots, OntologyVertexID(sub.AddPropertyType(root)))
			if err := t.traversePropertyType(ctx, &root.Schema, depths); err != nil {
				return nil, err
			}
		}

	case query.RecordKindEntityType:
		roots, err := r.reader.QueryEntityTypesAt(ctx, rootFilter, at)
		if err != nil {
			return nil, err
		}
		for _, root := range roots {
			sub.Roots = append(sub.Roots, OntologyVertexID(sub.AddEntityType(root)))
			if err := t.traverseEntityType(ctx, &root.Schema, depths); err != nil {
				return nil, err
			}
		}

	case query.RecordKindEntity:
		roots, err := r.reader.QueryEntitiesAt(ctx, rootFilter, at)
		if err != nil {
			return nil, err
		}
		for _, root := range roots {
			sub.Roots = append(sub.Roots, sub.AddEntity(root))
			if err := t.traverseEntity(ctx, root, depths); err != nil {
				return nil, err
			}
		}

	default:
		return nil, errors.Newf("cannot resolve subgraph roots of kind %q", kind)
	}

	sub.normalize()
	r.log.Debugw("resolved subgraph",
		"root_kind", string(kind),
		"roots", len(sub.Roots),
		"data_types", len(sub.Vertices.DataTypes),
		"property_types", len(sub.Vertices.PropertyTypes),
		"entity_types", len(sub.Vertices.EntityTypes),
		"entities", len(sub.Vertices.Entities),
	)
	return sub, nil
}

// traversal carries one resolution's pinned snapshot and accumulating
// subgraph through the frontier recursion.
type traversal struct {
	reader Reader
	at     temporal.PinnedAxes
	sub    *Subgraph
}

// traversePropertyType follows a property type's value constraints and
// nested property references under the remaining budgets.
func (t *traversal) traversePropertyType(ctx context.Context, pt *ontology.PropertyType, depths ResolveDepths) error {
	source := pt.ID

	if depths.ConstrainsValuesOn.Outgoing > 0 {
		for _, ref := range pt.DataTypeReferences() {
			target, err := t.reader.DataTypeAt(ctx, ref, t.at)
			if err != nil {
				if errors.IsNotFoundError(err) {
					continue
				}
				return err
			}
			t.sub.AddDataType(target)
			t.sub.AddOntologyEdge(source, EdgeConstrainsValuesOn, DirectionOutgoing, ref)
			// Data types are terminal: no recursion.
		}
	}

	if depths.ConstrainsPropertiesOn.Outgoing > 0 {
		next := depths.decrement(EdgeConstrainsPropertiesOn, DirectionOutgoing)
		for _, ref := range pt.PropertyTypeReferences() {
			target, err := t.reader.PropertyTypeAt(ctx, ref, t.at)
			if err != nil {
				if errors.IsNotFoundError(err) {
					continue
				}
				return err
			}
			t.sub.AddPropertyType(target)
			t.sub.AddOntologyEdge(source, EdgeConstrainsPropertiesOn, DirectionOutgoing, ref)
			if err := t.traversePropertyType(ctx, &target.Schema, next); err != nil {
				return err
			}
		}
	}
	return nil
}

// traverseEntityType follows an entity type's inheritance, property,
// link-type, and link-destination references under the remaining budgets.
func (t *traversal) traverseEntityType(ctx context.Context, et *ontology.EntityType, depths ResolveDepths) error {
	source := et.ID

	if depths.InheritsFrom.Outgoing > 0 {
		next := depths.decrement(EdgeInheritsFrom, DirectionOutgoing)
		for _, ref := range et.InheritsFrom() {
			target, err := t.reader.EntityTypeAt(ctx, ref, t.at)
			if err != nil {
				if errors.IsNotFoundError(err) {
					continue
				}
				return err
			}
			t.sub.AddEntityType(target)
			t.sub.AddOntologyEdge(source, EdgeInheritsFrom, DirectionOutgoing, ref)
			if err := t.traverseEntityType(ctx, &target.Schema, next); err != nil {
				return err
			}
		}
	}

	if depths.ConstrainsPropertiesOn.Outgoing > 0 {
		next := depths.decrement(EdgeConstrainsPropertiesOn, DirectionOutgoing)
		for _, ref := range et.PropertyTypeReferences() {
			target, err := t.reader.PropertyTypeAt(ctx, ref, t.at)
			if err != nil {
				if errors.IsNotFoundError(err) {
					continue
				}
				return err
			}
			t.sub.AddPropertyType(target)
			t.sub.AddOntologyEdge(source, EdgeConstrainsPropertiesOn, DirectionOutgoing, ref)
			if err := t.traversePropertyType(ctx, &target.Schema, next); err != nil {
				return err
			}
		}
	}

	if depths.ConstrainsLinksOn.Outgoing > 0 || depths.ConstrainsLinkDestinationsOn.Outgoing > 0 {
		for _, link := range et.LinkReferences() {
			if depths.ConstrainsLinksOn.Outgoing > 0 {
				next := depths.decrement(EdgeConstrainsLinksOn, DirectionOutgoing)
				target, err := t.reader.EntityTypeAt(ctx, link.LinkType, t.at)
				if err != nil {
					if !errors.IsNotFoundError(err) {
						return err
					}
				} else {
					t.sub.AddEntityType(target)
					t.sub.AddOntologyEdge(source, EdgeConstrainsLinksOn, DirectionOutgoing, link.LinkType)
					if err := t.traverseEntityType(ctx, &target.Schema, next); err != nil {
						return err
					}
				}
			}
			if depths.ConstrainsLinkDestinationsOn.Outgoing > 0 {
				next := depths.decrement(EdgeConstrainsLinkDestinationsOn, DirectionOutgoing)
				for _, dest := range link.Destinations {
					target, err := t.reader.EntityTypeAt(ctx, dest, t.at)
					if err != nil {
						if errors.IsNotFoundError(err) {
							continue
						}
						return err
					}
					t.sub.AddEntityType(target)
					t.sub.AddOntologyEdge(source, EdgeConstrainsLinkDestinationsOn, DirectionOutgoing, dest)
					if err := t.traverseEntityType(ctx, &target.Schema, next); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// traverseEntity follows knowledge edges from one entity vertex: a link
// reaches its endpoints outgoing, and any entity reaches its incident
// links incoming.
func (t *traversal) traverseEntity(ctx context.Context, e *Entity, depths ResolveDepths) error {
	source := e.VertexID()

	if e.LinkData != nil {
		endpoints := []struct {
			kind EdgeKind
			id   EntityID
		}{
			{EdgeHasLeftEntity, e.LinkData.LeftEntityID},
			{EdgeHasRightEntity, e.LinkData.RightEntityID},
		}
		for _, ep := range endpoints {
			if depths.budget(ep.kind, DirectionOutgoing) == 0 {
				continue
			}
			next := depths.decrement(ep.kind, DirectionOutgoing)
			target, err := t.reader.EntityAt(ctx, ep.id, t.at)
			if err != nil {
				if errors.IsNotFoundError(err) {
					continue
				}
				return err
			}
			targetID := t.sub.AddEntity(target)
			t.sub.AddKnowledgeEdge(source, ep.kind, DirectionOutgoing, targetID)
			if err := t.traverseEntity(ctx, target, next); err != nil {
				return err
			}
		}
	}

	incidents := []struct {
		kind EdgeKind
		list func(context.Context, EntityID, temporal.PinnedAxes) ([]*Entity, error)
	}{
		{EdgeHasLeftEntity, t.reader.LinksByLeftEntityAt},
		{EdgeHasRightEntity, t.reader.LinksByRightEntityAt},
	}
	for _, in := range incidents {
		if depths.budget(in.kind, DirectionIncoming) == 0 {
			continue
		}
		next := depths.decrement(in.kind, DirectionIncoming)
		links, err := in.list(ctx, e.Metadata.RecordID.EntityID, t.at)
		if err != nil {
			return err
		}
		for _, link := range links {
			linkID := t.sub.AddEntity(link)
			t.sub.AddKnowledgeEdge(source, in.kind, DirectionIncoming, linkID)
			if err := t.traverseEntity(ctx, link, next); err != nil {
				return err
			}
		}
	}
	return nil
}
