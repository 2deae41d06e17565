package ontology

import (
	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/provenance"
	"github.com/stratumdb/stratum/temporal"
)

// TypeMetadata is the system-side record of one type edition: its storage
// identity, who created it, whether it is owned by a local web or cached
// from a remote host, and the transaction interval during which it is
// current. Exactly one of OwnedByID and FetchedAt is set.
type TypeMetadata struct {
	RecordID   TypeRecordID        `json:"recordId"`
	Provenance provenance.Metadata `json:"provenance"`

	// OwnedByID marks a type created in a local web.
	OwnedByID *provenance.OwnedByID `json:"ownedById,omitempty"`
	// FetchedAt marks a type cached from a remote host, stamped with the
	// fetch time.
	FetchedAt *temporal.Timestamp `json:"fetchedAt,omitempty"`

	TemporalVersioning TypeTemporalMetadata `json:"temporalVersioning"`
}

// TypeTemporalMetadata carries the single temporal axis of a type edition.
// Ontology editions are versioned explicitly through their URL; the
// transaction interval only tracks current-versus-archived state.
type TypeTemporalMetadata struct {
	TransactionTime temporal.Interval `json:"transactionTime"`
}

// NewOwnedTypeMetadata stamps metadata for a type created in a local web.
func NewOwnedTypeMetadata(recordID TypeRecordID, createdBy provenance.AccountID, ownedBy provenance.OwnedByID, transactionTime temporal.Interval) TypeMetadata {
	return TypeMetadata{
		RecordID:           recordID,
		Provenance:         provenance.Metadata{RecordCreatedByID: createdBy},
		OwnedByID:          &ownedBy,
		TemporalVersioning: TypeTemporalMetadata{TransactionTime: transactionTime},
	}
}

// NewExternalTypeMetadata stamps metadata for a type cached from a remote
// host.
func NewExternalTypeMetadata(recordID TypeRecordID, createdBy provenance.AccountID, fetchedAt temporal.Timestamp, transactionTime temporal.Interval) TypeMetadata {
	return TypeMetadata{
		RecordID:           recordID,
		Provenance:         provenance.Metadata{RecordCreatedByID: createdBy},
		FetchedAt:          &fetchedAt,
		TemporalVersioning: TypeTemporalMetadata{TransactionTime: transactionTime},
	}
}

// IsExternal reports whether the edition was cached from a remote host.
func (m *TypeMetadata) IsExternal() bool {
	return m.FetchedAt != nil
}

// Validate checks that exactly one ownership variant is set.
func (m *TypeMetadata) Validate() error {
	if (m.OwnedByID == nil) == (m.FetchedAt == nil) {
		return errors.Newf("type metadata for %s must set exactly one of ownedById and fetchedAt", m.RecordID)
	}
	return nil
}

// DataTypeWithMetadata pairs a data type schema with its edition metadata.
type DataTypeWithMetadata struct {
	Schema   DataType     `json:"schema"`
	Metadata TypeMetadata `json:"metadata"`
}

// PropertyTypeWithMetadata pairs a property type schema with its edition
// metadata.
type PropertyTypeWithMetadata struct {
	Schema   PropertyType `json:"schema"`
	Metadata TypeMetadata `json:"metadata"`
}

// EntityTypeWithMetadata pairs an entity type schema with its edition
// metadata.
type EntityTypeWithMetadata struct {
	Schema   EntityType   `json:"schema"`
	Metadata TypeMetadata `json:"metadata"`

	// LabelProperty optionally names the property whose value should label
	// entities of this type in user interfaces.
	LabelProperty *BaseURL `json:"labelProperty,omitempty"`
}
