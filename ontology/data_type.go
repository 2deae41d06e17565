package ontology

import (
	"encoding/json"

	"github.com/stratumdb/stratum/errors"
)

// Schema meta-URLs identifying which kind of type a schema document is.
const (
	DataTypeSchemaURL     = "https://blockprotocol.org/types/modules/graph/0.3/schema/data-type"
	PropertyTypeSchemaURL = "https://blockprotocol.org/types/modules/graph/0.3/schema/property-type"
	EntityTypeSchemaURL   = "https://blockprotocol.org/types/modules/graph/0.3/schema/entity-type"
)

// Kind discriminators carried in the "kind" field of schema documents.
const (
	DataTypeKind     = "dataType"
	PropertyTypeKind = "propertyType"
	EntityTypeKind   = "entityType"
)

// JSON type names a data type may constrain a value to.
const (
	JSONTypeString  = "string"
	JSONTypeNumber  = "number"
	JSONTypeBoolean = "boolean"
	JSONTypeNull    = "null"
	JSONTypeObject  = "object"
	JSONTypeArray   = "array"
)

// DataType is the leaf of the type system: it names the JSON type a value
// must have, plus any extra constraint fields (const, enum, format) kept
// verbatim in AdditionalFields.
type DataType struct {
	Schema      string       `json:"$schema"`
	Kind        string       `json:"kind"`
	ID          VersionedURL `json:"$id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Type        string       `json:"type"`

	// AdditionalFields holds constraint keywords beyond the fixed fields,
	// serialized inline with them.
	AdditionalFields map[string]json.RawMessage `json:"-"`
}

// RecordID is the storage identity derived from the schema's $id.
func (dt *DataType) RecordID() TypeRecordID {
	return TypeRecordID{BaseURL: dt.ID.Base, Version: dt.ID.Version}
}

// Validate checks the structural invariants of the schema document.
func (dt *DataType) Validate() error {
	if dt.Kind != DataTypeKind {
		return errors.Newf("data type %s has kind %q, want %q", dt.ID, dt.Kind, DataTypeKind)
	}
	if dt.ID.IsZero() {
		return errors.New("data type is missing its $id")
	}
	if dt.Title == "" {
		return errors.Newf("data type %s is missing a title", dt.ID)
	}
	switch dt.Type {
	case JSONTypeString, JSONTypeNumber, JSONTypeBoolean, JSONTypeNull, JSONTypeObject, JSONTypeArray:
		return nil
	default:
		return errors.Newf("data type %s constrains to unknown JSON type %q", dt.ID, dt.Type)
	}
}

var dataTypeFixedFields = map[string]struct{}{
	"$schema":     {},
	"kind":        {},
	"$id":         {},
	"title":       {},
	"description": {},
	"type":        {},
}

// MarshalJSON inlines AdditionalFields next to the fixed fields.
func (dt DataType) MarshalJSON() ([]byte, error) {
	type fixed DataType
	raw, err := json.Marshal(fixed(dt))
	if err != nil {
		return nil, err
	}
	if len(dt.AdditionalFields) == 0 {
		return raw, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for key, value := range dt.AdditionalFields {
		if _, reserved := dataTypeFixedFields[key]; reserved {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// UnmarshalJSON splits the document into fixed fields and AdditionalFields.
func (dt *DataType) UnmarshalJSON(data []byte) error {
	type fixed DataType
	var parsed fixed
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key := range dataTypeFixedFields {
		delete(all, key)
	}
	*dt = DataType(parsed)
	if len(all) > 0 {
		dt.AdditionalFields = all
	}
	return nil
}
