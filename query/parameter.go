// Package query implements the filter engine: typed attribute paths,
// parameter conversion, the filter tree with its JSON wire form, and
// in-memory evaluation. Filters are resolved against a record kind before
// use, so malformed paths and inconvertible parameters fail at compile time
// rather than during query execution.
package query

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/temporal"
)

// ParameterType is the value type an attribute path expects its comparison
// parameter to have.
type ParameterType string

const (
	ParameterTypeAny             ParameterType = "any"
	ParameterTypeBoolean         ParameterType = "boolean"
	ParameterTypeNumber          ParameterType = "number"
	ParameterTypeUnsignedInteger ParameterType = "unsignedInteger"
	ParameterTypeText            ParameterType = "text"
	ParameterTypeUUID            ParameterType = "uuid"
	ParameterTypeBaseURL         ParameterType = "baseUrl"
	ParameterTypeVersionedURL    ParameterType = "versionedUrl"
	ParameterTypeTimestamp       ParameterType = "timestamp"

	// ParameterTypeVersion admits either an exact version number or the
	// literal text "latest".
	ParameterTypeVersion ParameterType = "ontologyTypeVersion"
)

// LatestVersion is the symbolic version parameter selecting the newest
// edition of a type.
const LatestVersion = "latest"

// ParameterKind discriminates the concrete value held by a Parameter.
type ParameterKind string

const (
	ParameterBoolean ParameterKind = "boolean"
	ParameterNumber  ParameterKind = "number"
	ParameterText    ParameterKind = "text"

	// ParameterUUID and ParameterInteger are produced by conversion, never
	// by deserialization: the wire carries them as text and number.
	ParameterUUID    ParameterKind = "uuid"
	ParameterInteger ParameterKind = "integer"
)

// Parameter is one comparison operand supplied by the caller. The wire form
// is an untagged JSON scalar; conversion against the path's expected type
// may narrow it to a UUID or integer.
type Parameter struct {
	kind    ParameterKind
	boolean bool
	number  float64
	text    string
	id      uuid.UUID
	integer int64
}

// NewBooleanParameter builds a boolean parameter.
func NewBooleanParameter(b bool) Parameter {
	return Parameter{kind: ParameterBoolean, boolean: b}
}

// NewNumberParameter builds a number parameter.
func NewNumberParameter(f float64) Parameter {
	return Parameter{kind: ParameterNumber, number: f}
}

// NewTextParameter builds a text parameter.
func NewTextParameter(s string) Parameter {
	return Parameter{kind: ParameterText, text: s}
}

// NewUUIDParameter builds an already-converted UUID parameter.
func NewUUIDParameter(id uuid.UUID) Parameter {
	return Parameter{kind: ParameterUUID, id: id}
}

// NewIntegerParameter builds an already-converted integer parameter.
func NewIntegerParameter(i int64) Parameter {
	return Parameter{kind: ParameterInteger, integer: i}
}

// Kind reports the concrete value held.
func (p Parameter) Kind() ParameterKind { return p.kind }

// Value returns the held value as a plain Go scalar, for evaluation and for
// binding as a database argument.
func (p Parameter) Value() any {
	switch p.kind {
	case ParameterBoolean:
		return p.boolean
	case ParameterNumber:
		return p.number
	case ParameterText:
		return p.text
	case ParameterUUID:
		return p.id.String()
	case ParameterInteger:
		return p.integer
	default:
		return nil
	}
}

// IsLatestVersion reports whether the parameter is the symbolic "latest"
// version selector.
func (p Parameter) IsLatestVersion() bool {
	return p.kind == ParameterText && p.text == LatestVersion
}

func (p Parameter) String() string {
	return fmt.Sprintf("%v", p.Value())
}

// MarshalJSON renders the untagged scalar wire form.
func (p Parameter) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value())
}

// UnmarshalJSON decodes the untagged scalar wire form. UUIDs and integers
// arrive as text and number; conversion narrows them later.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	switch v := value.(type) {
	case bool:
		*p = NewBooleanParameter(v)
	case float64:
		*p = NewNumberParameter(v)
	case string:
		*p = NewTextParameter(v)
	default:
		return errors.Newf("parameter must be a boolean, number, or string, got %T", value)
	}
	return nil
}

// ParameterConversionError reports a parameter that cannot be converted to
// the type its path expects. Matches errors.ErrInvalidRequest under
// errors.Is.
type ParameterConversionError struct {
	Actual   any
	Expected ParameterType
}

func (e *ParameterConversionError) Error() string {
	return fmt.Sprintf("could not convert parameter: expected %s, got %v (%T)",
		e.Expected, e.Actual, e.Actual)
}

func (e *ParameterConversionError) Unwrap() error { return errors.ErrInvalidRequest }

func conversionError(p Parameter, expected ParameterType) error {
	return errors.WithStack(&ParameterConversionError{Actual: p.Value(), Expected: expected})
}

// ConvertTo coerces the parameter to the type an attribute path expects.
// Text narrows to UUIDs, URLs, and timestamps by parsing; numbers narrow to
// unsigned integers when integral and non-negative. Anything else is a
// compile-time conversion failure.
func (p Parameter) ConvertTo(expected ParameterType) (Parameter, error) {
	switch expected {
	case ParameterTypeAny:
		return p, nil

	case ParameterTypeBoolean:
		if p.kind == ParameterBoolean {
			return p, nil
		}

	case ParameterTypeNumber:
		if p.kind == ParameterNumber {
			return p, nil
		}

	case ParameterTypeUnsignedInteger:
		if converted, ok := p.toUnsignedInteger(); ok {
			return converted, nil
		}

	case ParameterTypeText:
		if p.kind == ParameterText {
			return p, nil
		}

	case ParameterTypeUUID:
		if p.kind == ParameterUUID {
			return p, nil
		}
		if p.kind == ParameterText {
			id, err := uuid.Parse(p.text)
			if err == nil {
				return NewUUIDParameter(id), nil
			}
		}

	case ParameterTypeBaseURL:
		if p.kind == ParameterText {
			if _, err := ontology.ParseBaseURL(p.text); err == nil {
				return p, nil
			}
		}

	case ParameterTypeVersionedURL:
		if p.kind == ParameterText {
			if _, err := ontology.ParseVersionedURL(p.text); err == nil {
				return p, nil
			}
		}

	case ParameterTypeTimestamp:
		if p.kind == ParameterText {
			if _, err := temporal.Parse(p.text); err == nil {
				return p, nil
			}
		}

	case ParameterTypeVersion:
		if p.IsLatestVersion() {
			return p, nil
		}
		if converted, ok := p.toUnsignedInteger(); ok {
			return converted, nil
		}
	}
	return Parameter{}, conversionError(p, expected)
}

func (p Parameter) toUnsignedInteger() (Parameter, bool) {
	switch p.kind {
	case ParameterInteger:
		if p.integer >= 0 {
			return p, true
		}
	case ParameterNumber:
		rounded := math.Round(p.number)
		if rounded == p.number && rounded >= 0 && rounded <= math.MaxInt64 {
			return NewIntegerParameter(int64(rounded)), true
		}
	}
	return Parameter{}, false
}
