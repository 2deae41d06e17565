package query

import (
	"encoding/json"
	"strings"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
)

// RecordKind names the kind of record a filter applies to. Paths are only
// meaningful relative to a kind.
type RecordKind string

const (
	RecordKindDataType     RecordKind = "dataType"
	RecordKindPropertyType RecordKind = "propertyType"
	RecordKindEntityType   RecordKind = "entityType"
	RecordKindEntity       RecordKind = "entity"
)

// Path segment vocabulary. Segments are the JSON wire form of a path.
const (
	SegmentBaseURL          = "baseUrl"
	SegmentVersion          = "version"
	SegmentVersionedURL     = "versionedUrl"
	SegmentOwnedByID        = "ownedById"
	SegmentTitle            = "title"
	SegmentDescription      = "description"
	SegmentType             = "type"
	SegmentUUID             = "uuid"
	SegmentEditionID        = "editionId"
	SegmentArchived         = "archived"
	SegmentProperties       = "properties"
	SegmentLeftEntity       = "leftEntity"
	SegmentRightEntity      = "rightEntity"
	SegmentLeftToRightOrder = "leftToRightOrder"
	SegmentRightToLeftOrder = "rightToLeftOrder"
	SegmentCreatedByID      = "createdById"
)

// Path is a resolved attribute path: its record kind has been checked, its
// segments validated, and its expected parameter type derived.
type Path struct {
	kind     RecordKind
	segments []string
	expected ParameterType
}

// Kind reports the record kind the path applies to.
func (p Path) Kind() RecordKind { return p.kind }

// Segments returns the canonical wire segments.
func (p Path) Segments() []string { return p.segments }

// ExpectedType reports the parameter type comparisons against this path
// must convert to.
func (p Path) ExpectedType() ParameterType { return p.expected }

// Root returns the first segment.
func (p Path) Root() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[0]
}

// PropertyPath splits a properties path into the property type's base URL
// and the trailing segments below it. ok is false for non-property paths.
func (p Path) PropertyPath() (base ontology.BaseURL, below []string, ok bool) {
	if p.Root() != SegmentProperties || len(p.segments) < 2 {
		return "", nil, false
	}
	return ontology.BaseURL(p.segments[1]), p.segments[2:], true
}

// EndpointPath splits a leftEntity/rightEntity path into the endpoint
// segment and the attribute behind it. ok is false for non-endpoint paths.
func (p Path) EndpointPath() (endpoint, attribute string, ok bool) {
	root := p.Root()
	if (root != SegmentLeftEntity && root != SegmentRightEntity) || len(p.segments) != 2 {
		return "", "", false
	}
	return p.segments[0], p.segments[1], true
}

// TypePath splits a type path into the attribute on the entity's type. ok is
// false for non-type paths.
func (p Path) TypePath() (attribute string, ok bool) {
	if p.Root() != SegmentType || len(p.segments) != 2 {
		return "", false
	}
	return p.segments[1], true
}

func (p Path) String() string {
	return strings.Join(p.segments, "/")
}

// MarshalJSON renders the segment list.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.segments)
}

func invalidPath(segments []string, segment, reason string) error {
	return errors.WithStack(&errors.InvalidPathError{
		Path:    segments,
		Segment: segment,
		Reason:  reason,
	})
}

// ontologyPathTypes is the shared single-segment vocabulary of the three
// ontology record kinds.
var ontologyPathTypes = map[string]ParameterType{
	SegmentBaseURL:      ParameterTypeBaseURL,
	SegmentVersion:      ParameterTypeVersion,
	SegmentVersionedURL: ParameterTypeVersionedURL,
	SegmentOwnedByID:    ParameterTypeUUID,
	SegmentTitle:        ParameterTypeText,
	SegmentDescription:  ParameterTypeText,
	SegmentCreatedByID:  ParameterTypeUUID,
}

// entityPathTypes is the single-segment vocabulary of entity records.
var entityPathTypes = map[string]ParameterType{
	SegmentUUID:             ParameterTypeUUID,
	SegmentOwnedByID:        ParameterTypeUUID,
	SegmentEditionID:        ParameterTypeUUID,
	SegmentArchived:         ParameterTypeBoolean,
	SegmentLeftToRightOrder: ParameterTypeUnsignedInteger,
	SegmentRightToLeftOrder: ParameterTypeUnsignedInteger,
	SegmentCreatedByID:      ParameterTypeUUID,
}

// ParsePath resolves raw wire segments into a typed path for the given
// record kind. Unknown segments, wrong segment counts, and malformed
// property base URLs are rejected with an InvalidPathError.
func ParsePath(kind RecordKind, segments []string) (Path, error) {
	if len(segments) == 0 {
		return Path{}, invalidPath(segments, "", "empty path")
	}
	switch kind {
	case RecordKindDataType, RecordKindPropertyType, RecordKindEntityType:
		return parseOntologyPath(kind, segments)
	case RecordKindEntity:
		return parseEntityPath(segments)
	default:
		return Path{}, invalidPath(segments, segments[0], "unknown record kind "+string(kind))
	}
}

func parseOntologyPath(kind RecordKind, segments []string) (Path, error) {
	root := segments[0]
	expected, ok := ontologyPathTypes[root]
	if !ok && kind == RecordKindDataType && root == SegmentType {
		// Data types additionally expose the JSON type they constrain to.
		expected, ok = ParameterTypeText, true
	}
	if !ok {
		return Path{}, invalidPath(segments, root, "not an attribute of "+string(kind)+" records")
	}
	if len(segments) != 1 {
		return Path{}, invalidPath(segments, segments[1], root+" takes no further segments")
	}
	return Path{kind: kind, segments: segments, expected: expected}, nil
}

func parseEntityPath(segments []string) (Path, error) {
	root := segments[0]

	if expected, ok := entityPathTypes[root]; ok {
		if len(segments) != 1 {
			return Path{}, invalidPath(segments, segments[1], root+" takes no further segments")
		}
		return Path{kind: RecordKindEntity, segments: segments, expected: expected}, nil
	}

	switch root {
	case SegmentType:
		if len(segments) < 2 {
			return Path{}, invalidPath(segments, root, "type requires an entity type attribute")
		}
		sub, err := parseOntologyPath(RecordKindEntityType, segments[1:])
		if err != nil {
			return Path{}, err
		}
		return Path{kind: RecordKindEntity, segments: segments, expected: sub.expected}, nil

	case SegmentProperties:
		if len(segments) < 2 {
			return Path{}, invalidPath(segments, root, "properties requires a property type base URL")
		}
		if _, err := ontology.ParseBaseURL(segments[1]); err != nil {
			return Path{}, invalidPath(segments, segments[1], "not a valid property type base URL")
		}
		return Path{kind: RecordKindEntity, segments: segments, expected: ParameterTypeAny}, nil

	case SegmentLeftEntity, SegmentRightEntity:
		if len(segments) != 2 {
			return Path{}, invalidPath(segments, root, root+" requires exactly one endpoint attribute")
		}
		switch segments[1] {
		case SegmentUUID, SegmentOwnedByID:
			return Path{kind: RecordKindEntity, segments: segments, expected: ParameterTypeUUID}, nil
		default:
			return Path{}, invalidPath(segments, segments[1], "only uuid and ownedById are supported behind link endpoints")
		}

	default:
		return Path{}, invalidPath(segments, root, "not an attribute of entity records")
	}
}

// Convenience constructors for the paths filters are routinely built from.
// They panic only on programmer error, never on user input.

func mustPath(kind RecordKind, segments ...string) Path {
	p, err := ParsePath(kind, segments)
	if err != nil {
		panic(err)
	}
	return p
}

// BaseURLPath addresses the base URL of an ontology record kind.
func BaseURLPath(kind RecordKind) Path { return mustPath(kind, SegmentBaseURL) }

// VersionPath addresses the version of an ontology record kind.
func VersionPath(kind RecordKind) Path { return mustPath(kind, SegmentVersion) }

// VersionedURLPath addresses the versioned URL of an ontology record kind.
func VersionedURLPath(kind RecordKind) Path { return mustPath(kind, SegmentVersionedURL) }

// EntityUUIDPath addresses the entity's UUID.
func EntityUUIDPath() Path { return mustPath(RecordKindEntity, SegmentUUID) }

// EntityOwnerPath addresses the entity's owning web.
func EntityOwnerPath() Path { return mustPath(RecordKindEntity, SegmentOwnedByID) }

// EntityArchivedPath addresses the entity's archived flag.
func EntityArchivedPath() Path { return mustPath(RecordKindEntity, SegmentArchived) }

// EntityTypeVersionedURLPath addresses the versioned URL of the entity's
// type.
func EntityTypeVersionedURLPath() Path {
	return mustPath(RecordKindEntity, SegmentType, SegmentVersionedURL)
}

// EntityPropertyPath addresses a property subtree of an entity.
func EntityPropertyPath(base ontology.BaseURL, below ...string) (Path, error) {
	segments := append([]string{SegmentProperties, base.String()}, below...)
	return ParsePath(RecordKindEntity, segments)
}

// LeftEntityUUIDPath addresses the UUID of a link's left endpoint.
func LeftEntityUUIDPath() Path { return mustPath(RecordKindEntity, SegmentLeftEntity, SegmentUUID) }

// RightEntityUUIDPath addresses the UUID of a link's right endpoint.
func RightEntityUUIDPath() Path { return mustPath(RecordKindEntity, SegmentRightEntity, SegmentUUID) }
