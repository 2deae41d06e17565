package ontology

import (
	"sort"

	"github.com/stratumdb/stratum/errors"
)

// EntityType describes the shape of an entity: which properties it carries,
// which are required, whether unknown properties are allowed, which parents
// it inherits from, and which link types may leave it.
type EntityType struct {
	Schema      string       `json:"$schema"`
	Kind        string       `json:"kind"`
	ID          VersionedURL `json:"$id"`
	Type        string       `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`

	// AllOf lists the parent entity types this type inherits from.
	AllOf []TypeReference `json:"allOf,omitempty"`

	Properties map[BaseURL]PropertySlot `json:"properties"`
	Required   []BaseURL                `json:"required,omitempty"`

	// AdditionalProperties false rejects properties not declared here or on
	// a parent.
	AdditionalProperties bool `json:"additionalProperties"`

	// Links maps a link entity type's versioned URL to the constraints on
	// links of that type leaving entities of this type.
	Links map[VersionedURL]LinkSchema `json:"links,omitempty"`
}

// LinkSchema constrains one outgoing link type: how many links may exist,
// whether their order is meaningful, and which entity types the link may
// point at. A nil or empty destination set allows any destination.
type LinkSchema struct {
	Type     string                `json:"type"`
	Ordered  bool                  `json:"ordered"`
	Items    *EntityTypeReferences `json:"items,omitempty"`
	MinItems *int                  `json:"minItems,omitempty"`
	MaxItems *int                  `json:"maxItems,omitempty"`
}

// EntityTypeReferences wraps a oneOf set of entity type references.
type EntityTypeReferences struct {
	OneOf []TypeReference `json:"oneOf,omitempty"`
}

// DestinationConstraints returns the allowed destination entity types of a
// link schema. Empty means any destination is allowed.
func (l LinkSchema) DestinationConstraints() []VersionedURL {
	if l.Items == nil {
		return nil
	}
	out := make([]VersionedURL, 0, len(l.Items.OneOf))
	for _, ref := range l.Items.OneOf {
		out = append(out, ref.URL)
	}
	return out
}

// RecordID is the storage identity derived from the schema's $id.
func (et *EntityType) RecordID() TypeRecordID {
	return TypeRecordID{BaseURL: et.ID.Base, Version: et.ID.Version}
}

// Validate checks the structural invariants of the schema document.
func (et *EntityType) Validate() error {
	if et.Kind != EntityTypeKind {
		return errors.Newf("entity type %s has kind %q, want %q", et.ID, et.Kind, EntityTypeKind)
	}
	if et.ID.IsZero() {
		return errors.New("entity type is missing its $id")
	}
	if et.Title == "" {
		return errors.Newf("entity type %s is missing a title", et.ID)
	}
	if et.Type != JSONTypeObject {
		return errors.Newf("entity type %s must have type object, got %q", et.ID, et.Type)
	}
	for base, slot := range et.Properties {
		if slot.Reference().Base != base {
			return errors.Newf("entity type %s: property key %s does not match the referenced type %s", et.ID, base, slot.Reference())
		}
	}
	for _, base := range et.Required {
		if _, ok := et.Properties[base]; !ok {
			return errors.Newf("entity type %s requires undeclared property %s", et.ID, base)
		}
	}
	for linkType, schema := range et.Links {
		if schema.Type != JSONTypeArray {
			return errors.Newf("entity type %s: link %s must have type array, got %q", et.ID, linkType, schema.Type)
		}
	}
	return nil
}

// InheritsFrom lists the direct parents named in allOf.
func (et *EntityType) InheritsFrom() []VersionedURL {
	out := make([]VersionedURL, 0, len(et.AllOf))
	for _, ref := range et.AllOf {
		out = append(out, ref.URL)
	}
	return out
}

// PropertyTypeReferences lists the property types referenced directly by
// this type, sorted for deterministic traversal.
func (et *EntityType) PropertyTypeReferences() []VersionedURL {
	out := make([]VersionedURL, 0, len(et.Properties))
	for _, slot := range et.Properties {
		out = append(out, slot.Reference())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// LinkReferences lists the link entity types and their destination
// constraints, sorted by link type URL for deterministic traversal.
func (et *EntityType) LinkReferences() []LinkReference {
	out := make([]LinkReference, 0, len(et.Links))
	for linkType, schema := range et.Links {
		out = append(out, LinkReference{
			LinkType:     linkType,
			Destinations: schema.DestinationConstraints(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinkType.String() < out[j].LinkType.String() })
	return out
}

// LinkReference names one outgoing link type and its allowed destinations.
// An empty destination list allows any destination.
type LinkReference struct {
	LinkType     VersionedURL
	Destinations []VersionedURL
}
