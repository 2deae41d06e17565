// Package provenance carries the actor and ownership identities stamped on
// every ontology edition and entity version.
package provenance

import (
	"github.com/google/uuid"

	"github.com/stratumdb/stratum/errors"
)

// AccountID identifies an actor account.
type AccountID uuid.UUID

// NewAccountID wraps a UUID as an AccountID.
func NewAccountID(id uuid.UUID) AccountID {
	return AccountID(id)
}

// ParseAccountID reads an AccountID from its string form.
func ParseAccountID(s string) (AccountID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, errors.Wrapf(err, "parsing account id %q", s)
	}
	return AccountID(id), nil
}

func (id AccountID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the canonical UUID form.
func (id AccountID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses and validates the UUID form.
func (id *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// OwnedByID identifies the account or organization web that owns a record.
type OwnedByID uuid.UUID

// NewOwnedByID wraps a UUID as an OwnedByID.
func NewOwnedByID(id uuid.UUID) OwnedByID {
	return OwnedByID(id)
}

// ParseOwnedByID reads an OwnedByID from its string form.
func ParseOwnedByID(s string) (OwnedByID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return OwnedByID{}, errors.Wrapf(err, "parsing owner id %q", s)
	}
	return OwnedByID(id), nil
}

func (id OwnedByID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the canonical UUID form.
func (id OwnedByID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses and validates the UUID form.
func (id *OwnedByID) UnmarshalText(text []byte) error {
	parsed, err := ParseOwnedByID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Metadata records who created a record version and, once archived, who
// archived it.
type Metadata struct {
	RecordCreatedByID  AccountID  `json:"recordCreatedById"`
	RecordArchivedByID *AccountID `json:"recordArchivedById,omitempty"`
}
