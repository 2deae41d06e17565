package graph

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/provenance"
	"github.com/stratumdb/stratum/query"
	"github.com/stratumdb/stratum/temporal"
)

// EntityRecordID identifies one stored version row of an entity: the
// entity's identity plus the edition minted when the version was opened.
type EntityRecordID struct {
	EntityID  EntityID  `json:"entityId"`
	EditionID EditionID `json:"editionId"`
}

// LinkData designates the endpoints of a link entity; present exactly when
// the entity's type is a link type. The orders position the link among its
// siblings from each endpoint's perspective.
type LinkData struct {
	LeftEntityID     EntityID `json:"leftEntityId"`
	RightEntityID    EntityID `json:"rightEntityId"`
	LeftToRightOrder *int     `json:"leftToRightOrder,omitempty"`
	RightToLeftOrder *int     `json:"rightToLeftOrder,omitempty"`
}

// EntityMetadata carries everything about an entity version except its
// property payload.
type EntityMetadata struct {
	RecordID     EntityRecordID        `json:"recordId"`
	EntityTypeID ontology.VersionedURL `json:"entityTypeId"`
	Temporal     temporal.Axes         `json:"temporalVersioning"`
	Provenance   provenance.Metadata   `json:"provenance"`
	Archived     bool                  `json:"archived"`
}

// Entity is one pinned version of an entity: its property bag, link
// endpoints when it is a link, and version metadata.
type Entity struct {
	Properties Properties     `json:"properties"`
	LinkData   *LinkData      `json:"linkData,omitempty"`
	Metadata   EntityMetadata `json:"metadata"`
}

// IsLink reports whether the entity is a link entity.
func (e *Entity) IsLink() bool {
	return e.LinkData != nil
}

// IsLatestVersion reports whether this version's transaction interval is
// still open.
func (e *Entity) IsLatestVersion() bool {
	return e.Metadata.Temporal.TransactionTime.IsOpen()
}

// VertexID keys this entity version in a subgraph: the identity plus the
// decision instant the version became effective.
func (e *Entity) VertexID() EntityVertexID {
	return EntityVertexID{
		EntityID:     e.Metadata.RecordID.EntityID,
		DecisionTime: e.Metadata.Temporal.DecisionTime.Start.Limit(),
	}
}

// EntityVertexID keys one entity vertex in a subgraph. Wire form
// "<entityId>@<decisionTime>".
type EntityVertexID struct {
	EntityID     EntityID           `json:"entityId"`
	DecisionTime temporal.Timestamp `json:"decisionTime"`
}

const vertexIDSeparator = "@"

func (id EntityVertexID) String() string {
	return id.EntityID.String() + vertexIDSeparator + id.DecisionTime.String()
}

// MarshalText renders the wire form, letting vertex ids key JSON maps.
func (id EntityVertexID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses and validates the wire form.
func (id *EntityVertexID) UnmarshalText(text []byte) error {
	entity, instant, found := strings.Cut(string(text), vertexIDSeparator)
	if !found {
		return errors.Newf("entity vertex id %q is not of the form <entityId>%s<decisionTime>",
			string(text), vertexIDSeparator)
	}
	entityID, err := ParseEntityID(entity)
	if err != nil {
		return err
	}
	ts, err := temporal.Parse(instant)
	if err != nil {
		return err
	}
	*id = EntityVertexID{EntityID: entityID, DecisionTime: ts}
	return nil
}

// ResolveAttribute exposes entity attributes to in-memory filter
// evaluation. Unmapped paths report absence, which the evaluator treats as
// null.
func (e *Entity) ResolveAttribute(path query.Path) (any, bool) {
	if base, below, ok := path.PropertyPath(); ok {
		return e.resolveProperty(base, below)
	}
	if endpoint, attribute, ok := path.EndpointPath(); ok {
		return e.resolveEndpoint(endpoint, attribute)
	}
	if attribute, ok := path.TypePath(); ok {
		switch attribute {
		case query.SegmentBaseURL:
			return e.Metadata.EntityTypeID.Base, true
		case query.SegmentVersion:
			return e.Metadata.EntityTypeID.Version, true
		case query.SegmentVersionedURL:
			return e.Metadata.EntityTypeID, true
		}
		return nil, false
	}

	switch path.Root() {
	case query.SegmentUUID:
		return uuid.UUID(e.Metadata.RecordID.EntityID.EntityUUID), true
	case query.SegmentOwnedByID:
		return uuid.UUID(e.Metadata.RecordID.EntityID.OwnedByID), true
	case query.SegmentEditionID:
		return uuid.UUID(e.Metadata.RecordID.EditionID), true
	case query.SegmentArchived:
		return e.Metadata.Archived, true
	case query.SegmentCreatedByID:
		return uuid.UUID(e.Metadata.Provenance.RecordCreatedByID), true
	case query.SegmentLeftToRightOrder:
		if e.LinkData == nil || e.LinkData.LeftToRightOrder == nil {
			return nil, false
		}
		return *e.LinkData.LeftToRightOrder, true
	case query.SegmentRightToLeftOrder:
		if e.LinkData == nil || e.LinkData.RightToLeftOrder == nil {
			return nil, false
		}
		return *e.LinkData.RightToLeftOrder, true
	}
	return nil, false
}

// resolveProperty walks the value tree below one property-type base URL.
// Array hops take decimal indexes.
func (e *Entity) resolveProperty(base ontology.BaseURL, below []string) (any, bool) {
	value, ok := e.Properties[base]
	if !ok {
		return nil, false
	}
	for _, segment := range below {
		switch value.Kind() {
		case ValueObject:
			obj, _ := value.Object()
			next, present := obj[segment]
			if !present {
				return nil, false
			}
			value = next
		case ValueArray:
			arr, _ := value.Array()
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			value = arr[idx]
		default:
			return nil, false
		}
	}
	return value.Interface(), true
}

func (e *Entity) resolveEndpoint(endpoint, attribute string) (any, bool) {
	if e.LinkData == nil {
		return nil, false
	}
	var id EntityID
	switch endpoint {
	case query.SegmentLeftEntity:
		id = e.LinkData.LeftEntityID
	case query.SegmentRightEntity:
		id = e.LinkData.RightEntityID
	default:
		return nil, false
	}
	switch attribute {
	case query.SegmentUUID:
		return uuid.UUID(id.EntityUUID), true
	case query.SegmentOwnedByID:
		return uuid.UUID(id.OwnedByID), true
	}
	return nil, false
}
