// Package graph holds the knowledge side of the store: entity and link
// identities, property value trees, pinned entity versions, and the
// bounded-depth subgraph resolver that assembles query responses.
package graph

import (
	"strings"

	"github.com/google/uuid"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/provenance"
)

// EntityUUID identifies an entity within its owning web.
type EntityUUID uuid.UUID

// NewEntityUUID wraps a UUID as an EntityUUID.
func NewEntityUUID(id uuid.UUID) EntityUUID {
	return EntityUUID(id)
}

// ParseEntityUUID reads an EntityUUID from its string form.
func ParseEntityUUID(s string) (EntityUUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EntityUUID{}, errors.Wrapf(err, "parsing entity uuid %q", s)
	}
	return EntityUUID(id), nil
}

func (id EntityUUID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the canonical UUID form.
func (id EntityUUID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses and validates the UUID form.
func (id *EntityUUID) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityUUID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// entityIDSeparator joins the owner and entity halves of an EntityID's wire
// form.
const entityIDSeparator = "~"

// EntityID is the two-part identity of an entity: the owning web and the
// entity's UUID within it. Wire form "<owner>~<uuid>".
type EntityID struct {
	OwnedByID  provenance.OwnedByID
	EntityUUID EntityUUID
}

// NewEntityID pairs an owner with an entity UUID.
func NewEntityID(owner provenance.OwnedByID, entityUUID EntityUUID) EntityID {
	return EntityID{OwnedByID: owner, EntityUUID: entityUUID}
}

// ParseEntityID reads the "<owner>~<uuid>" wire form, validating both
// halves.
func ParseEntityID(s string) (EntityID, error) {
	owner, entity, found := strings.Cut(s, entityIDSeparator)
	if !found {
		return EntityID{}, errors.Newf("entity id %q is not of the form <owner>%s<uuid>",
			s, entityIDSeparator)
	}
	ownedBy, err := provenance.ParseOwnedByID(owner)
	if err != nil {
		return EntityID{}, errors.Wrapf(err, "entity id %q", s)
	}
	entityUUID, err := ParseEntityUUID(entity)
	if err != nil {
		return EntityID{}, errors.Wrapf(err, "entity id %q", s)
	}
	return EntityID{OwnedByID: ownedBy, EntityUUID: entityUUID}, nil
}

func (id EntityID) String() string {
	return id.OwnedByID.String() + entityIDSeparator + id.EntityUUID.String()
}

// MarshalText renders the "<owner>~<uuid>" wire form.
func (id EntityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses and validates the wire form.
func (id *EntityID) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// EditionID identifies one stored version row of an entity. Every open
// produces a fresh edition.
type EditionID uuid.UUID

// NewEditionID mints a random edition id.
func NewEditionID() EditionID {
	return EditionID(uuid.New())
}

// ParseEditionID reads an EditionID from its string form.
func ParseEditionID(s string) (EditionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EditionID{}, errors.Wrapf(err, "parsing edition id %q", s)
	}
	return EditionID(id), nil
}

func (id EditionID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the canonical UUID form.
func (id EditionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses and validates the UUID form.
func (id *EditionID) UnmarshalText(text []byte) error {
	parsed, err := ParseEditionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
