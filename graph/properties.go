package graph

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
)

// ValueKind discriminates the JSON shapes a property value can take.
type ValueKind string

const (
	ValueNull    ValueKind = "null"
	ValueBoolean ValueKind = "boolean"
	ValueNumber  ValueKind = "number"
	ValueString  ValueKind = "string"
	ValueArray   ValueKind = "array"
	ValueObject  ValueKind = "object"
)

// Value is one node of a property value tree: object, array, string,
// number, boolean, or null. Numbers keep their literal form via json.Number
// so integer fidelity survives round-trips. Build values with the
// constructors; the zero value is invalid.
type Value struct {
	kind ValueKind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

// NullValue returns the JSON null value.
func NullValue() Value {
	return Value{kind: ValueNull}
}

// BooleanValue wraps a bool.
func BooleanValue(b bool) Value {
	return Value{kind: ValueBoolean, b: b}
}

// NumberValue wraps a number in its literal form.
func NumberValue(n json.Number) Value {
	return Value{kind: ValueNumber, num: n}
}

// IntValue wraps an integer.
func IntValue(i int64) Value {
	return NumberValue(json.Number(strconv.FormatInt(i, 10)))
}

// Float64Value wraps a float.
func Float64Value(f float64) Value {
	return NumberValue(json.Number(strconv.FormatFloat(f, 'g', -1, 64)))
}

// StringValue wraps a string.
func StringValue(s string) Value {
	return Value{kind: ValueString, str: s}
}

// ArrayValue wraps a sequence of values.
func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: ValueArray, arr: items}
}

// ObjectValue wraps a keyed set of values.
func ObjectValue(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: ValueObject, obj: fields}
}

// Kind reports which JSON shape this value holds.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool {
	return v.kind == ValueNull
}

// Boolean returns the boolean payload, when the value is one.
func (v Value) Boolean() (bool, bool) {
	return v.b, v.kind == ValueBoolean
}

// Number returns the numeric payload in literal form, when the value is
// one.
func (v Value) Number() (json.Number, bool) {
	return v.num, v.kind == ValueNumber
}

// Text returns the string payload, when the value is one.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == ValueString
}

// Array returns the element slice, when the value is an array.
func (v Value) Array() ([]Value, bool) {
	return v.arr, v.kind == ValueArray
}

// Object returns the field map, when the value is an object.
func (v Value) Object() (map[string]Value, bool) {
	return v.obj, v.kind == ValueObject
}

// Equal reports deep equality. Numbers compare by literal, so stored values
// round-trip byte-faithfully.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case ValueNull:
		return true
	case ValueBoolean:
		return v.b == other.b
	case ValueNumber:
		return v.num == other.num
	case ValueString:
		return v.str == other.str
	case ValueArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case ValueObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, val := range v.obj {
			o, ok := other.obj[k]
			if !ok || !val.Equal(o) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Interface unwraps the value into the plain shapes filter evaluation
// understands: nil, bool, json.Number, string, []any, map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case ValueBoolean:
		return v.b
	case ValueNumber:
		return v.num
	case ValueString:
		return v.str
	case ValueArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case ValueObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON renders the value in its literal JSON shape.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueNull:
		return []byte("null"), nil
	case ValueBoolean:
		return json.Marshal(v.b)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueString:
		return json.Marshal(v.str)
	case ValueArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case ValueObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	default:
		return nil, errors.New("cannot marshal zero-value property value")
	}
}

// UnmarshalJSON decodes any JSON shape, keeping numbers literal.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return errors.Wrap(err, "decoding property value")
	}
	decoded, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func valueFromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BooleanValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case string:
		return StringValue(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			decoded, err := valueFromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = decoded
		}
		return Value{kind: ValueArray, arr: items}, nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			decoded, err := valueFromAny(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = decoded
		}
		return Value{kind: ValueObject, obj: fields}, nil
	default:
		return Value{}, errors.Newf("unsupported property value of type %T", raw)
	}
}

// Properties is an entity's property bag, keyed by property-type base URL.
// Keys are validated on decode; values keep literal number fidelity.
type Properties map[ontology.BaseURL]Value

// Equal reports deep equality of two property bags.
func (p Properties) Equal(other Properties) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		o, ok := other[k]
		if !ok || !v.Equal(o) {
			return false
		}
	}
	return true
}
