package ontology

import (
	"encoding/json"

	"github.com/stratumdb/stratum/errors"
)

// PropertyType describes the shapes a single property may take. Its oneOf
// lists the acceptable value shapes; a value matching any variant satisfies
// the property type.
type PropertyType struct {
	Schema      string          `json:"$schema"`
	Kind        string          `json:"kind"`
	ID          VersionedURL    `json:"$id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	OneOf       []PropertyValue `json:"oneOf"`
}

// RecordID is the storage identity derived from the schema's $id.
func (pt *PropertyType) RecordID() TypeRecordID {
	return TypeRecordID{BaseURL: pt.ID.Base, Version: pt.ID.Version}
}

// Validate checks the structural invariants of the schema document.
func (pt *PropertyType) Validate() error {
	if pt.Kind != PropertyTypeKind {
		return errors.Newf("property type %s has kind %q, want %q", pt.ID, pt.Kind, PropertyTypeKind)
	}
	if pt.ID.IsZero() {
		return errors.New("property type is missing its $id")
	}
	if pt.Title == "" {
		return errors.Newf("property type %s is missing a title", pt.ID)
	}
	if len(pt.OneOf) == 0 {
		return errors.Newf("property type %s must offer at least one value shape", pt.ID)
	}
	for i := range pt.OneOf {
		if err := pt.OneOf[i].validate(); err != nil {
			return errors.Wrapf(err, "property type %s, oneOf[%d]", pt.ID, i)
		}
	}
	return nil
}

// DataTypeReferences lists every data type the property type points at,
// including those nested inside array and object variants.
func (pt *PropertyType) DataTypeReferences() []VersionedURL {
	seen := map[VersionedURL]struct{}{}
	var out []VersionedURL
	var walk func(values []PropertyValue)
	walk = func(values []PropertyValue) {
		for _, value := range values {
			switch {
			case value.DataTypeRef != nil:
				if _, ok := seen[value.DataTypeRef.URL]; !ok {
					seen[value.DataTypeRef.URL] = struct{}{}
					out = append(out, value.DataTypeRef.URL)
				}
			case value.Array != nil:
				walk(value.Array.Items.OneOf)
			}
		}
	}
	walk(pt.OneOf)
	return out
}

// PropertyTypeReferences lists every property type referenced from object
// variants, including those nested inside arrays.
func (pt *PropertyType) PropertyTypeReferences() []VersionedURL {
	seen := map[VersionedURL]struct{}{}
	var out []VersionedURL
	var walk func(values []PropertyValue)
	walk = func(values []PropertyValue) {
		for _, value := range values {
			switch {
			case value.Object != nil:
				for _, slot := range value.Object.Properties {
					ref := slot.Reference()
					if _, ok := seen[ref]; !ok {
						seen[ref] = struct{}{}
						out = append(out, ref)
					}
				}
			case value.Array != nil:
				walk(value.Array.Items.OneOf)
			}
		}
	}
	walk(pt.OneOf)
	return out
}

// PropertyValue is one acceptable shape for a property's value: a direct
// data type reference, a nested property object, or an array of further
// shapes. Exactly one field is set.
type PropertyValue struct {
	DataTypeRef *TypeReference
	Object      *PropertyObjectSchema
	Array       *PropertyArraySchema
}

func (pv *PropertyValue) validate() error {
	set := 0
	if pv.DataTypeRef != nil {
		set++
	}
	if pv.Object != nil {
		set++
	}
	if pv.Array != nil {
		set++
	}
	if set != 1 {
		return errors.New("value shape must be exactly one of a data type reference, an object, or an array")
	}
	if pv.Object != nil {
		return pv.Object.validate()
	}
	if pv.Array != nil {
		if len(pv.Array.Items.OneOf) == 0 {
			return errors.New("array shape must offer at least one item shape")
		}
		for i := range pv.Array.Items.OneOf {
			if err := pv.Array.Items.OneOf[i].validate(); err != nil {
				return errors.Wrapf(err, "items oneOf[%d]", i)
			}
		}
	}
	return nil
}

// MarshalJSON renders the variant in its schema form.
func (pv PropertyValue) MarshalJSON() ([]byte, error) {
	switch {
	case pv.DataTypeRef != nil:
		return json.Marshal(pv.DataTypeRef)
	case pv.Object != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*PropertyObjectSchema
		}{Type: JSONTypeObject, PropertyObjectSchema: pv.Object})
	case pv.Array != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*PropertyArraySchema
		}{Type: JSONTypeArray, PropertyArraySchema: pv.Array})
	default:
		return nil, errors.New("cannot marshal an empty property value shape")
	}
}

// UnmarshalJSON discriminates on the presence of "$ref" or the "type" field.
func (pv *PropertyValue) UnmarshalJSON(data []byte) error {
	var probe struct {
		Ref  *VersionedURL `json:"$ref"`
		Type string        `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*pv = PropertyValue{}
	switch {
	case probe.Ref != nil:
		pv.DataTypeRef = &TypeReference{URL: *probe.Ref}
		return nil
	case probe.Type == JSONTypeObject:
		pv.Object = &PropertyObjectSchema{}
		return json.Unmarshal(data, pv.Object)
	case probe.Type == JSONTypeArray:
		pv.Array = &PropertyArraySchema{}
		return json.Unmarshal(data, pv.Array)
	default:
		return errors.Newf("property value shape must carry $ref or type object/array, got type %q", probe.Type)
	}
}

// PropertyObjectSchema is a nested property object: each key is a property
// type's base URL, each slot a reference to that property type, optionally
// wrapped in an array.
type PropertyObjectSchema struct {
	Properties map[BaseURL]PropertySlot `json:"properties"`
	Required   []BaseURL                `json:"required,omitempty"`
}

func (o *PropertyObjectSchema) validate() error {
	if len(o.Properties) == 0 {
		return errors.New("object shape must declare at least one property")
	}
	for base, slot := range o.Properties {
		if slot.Reference().Base != base {
			return errors.Newf("property key %s does not match the referenced type %s", base, slot.Reference())
		}
	}
	for _, base := range o.Required {
		if _, ok := o.Properties[base]; !ok {
			return errors.Newf("required property %s is not declared", base)
		}
	}
	return nil
}

// PropertyArraySchema is an array whose items may take any of the listed
// shapes. Nil bounds leave that side unconstrained.
type PropertyArraySchema struct {
	Items    PropertyValues `json:"items"`
	MinItems *int           `json:"minItems,omitempty"`
	MaxItems *int           `json:"maxItems,omitempty"`
}

// PropertyValues wraps a oneOf list of value shapes.
type PropertyValues struct {
	OneOf []PropertyValue `json:"oneOf"`
}

// PropertySlot is the value of one key in a property object: either a direct
// reference to a property type or an array of references to it. Exactly one
// field is set.
type PropertySlot struct {
	Ref   *TypeReference
	Array *PropertySlotArray
}

// PropertySlotArray wraps a property type reference in an array with
// optional bounds.
type PropertySlotArray struct {
	Items    TypeReference `json:"items"`
	MinItems *int          `json:"minItems,omitempty"`
	MaxItems *int          `json:"maxItems,omitempty"`
}

// Reference returns the property type the slot points at, regardless of
// array wrapping.
func (s PropertySlot) Reference() VersionedURL {
	if s.Ref != nil {
		return s.Ref.URL
	}
	if s.Array != nil {
		return s.Array.Items.URL
	}
	return VersionedURL{}
}

// IsArray reports whether the slot expects an array of values.
func (s PropertySlot) IsArray() bool {
	return s.Array != nil
}

// MarshalJSON renders the variant in its schema form.
func (s PropertySlot) MarshalJSON() ([]byte, error) {
	switch {
	case s.Ref != nil:
		return json.Marshal(s.Ref)
	case s.Array != nil:
		return json.Marshal(struct {
			Type string `json:"type"`
			*PropertySlotArray
		}{Type: JSONTypeArray, PropertySlotArray: s.Array})
	default:
		return nil, errors.New("cannot marshal an empty property slot")
	}
}

// UnmarshalJSON discriminates on the presence of "$ref".
func (s *PropertySlot) UnmarshalJSON(data []byte) error {
	var probe struct {
		Ref  *VersionedURL `json:"$ref"`
		Type string        `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*s = PropertySlot{}
	switch {
	case probe.Ref != nil:
		s.Ref = &TypeReference{URL: *probe.Ref}
		return nil
	case probe.Type == JSONTypeArray:
		s.Array = &PropertySlotArray{}
		return json.Unmarshal(data, s.Array)
	default:
		return errors.Newf("property slot must carry $ref or type array, got type %q", probe.Type)
	}
}
