package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/ontology"
)

// TestPropertiesRoundTrip verifies a property bag survives a JSON
// round-trip byte-faithfully, including integers too large for float64.
func TestPropertiesRoundTrip(t *testing.T) {
	input := `{
		"https://example.com/types/property-type/name/": "Alice",
		"https://example.com/types/property-type/age/": 9007199254740993,
		"https://example.com/types/property-type/address/": {
			"street": "Main St",
			"number": 42,
			"tags": ["home", true, null, 1.5]
		}
	}`

	var props Properties
	require.NoError(t, json.Unmarshal([]byte(input), &props))

	age, ok := props["https://example.com/types/property-type/age/"].Number()
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", age.String(), "integer fidelity must survive decoding")

	raw, err := json.Marshal(props)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(raw))

	var again Properties
	require.NoError(t, json.Unmarshal(raw, &again))
	assert.True(t, props.Equal(again))
}

// TestPropertiesRejectsInvalidKeys verifies bags keyed by anything but a
// valid base URL fail to decode.
func TestPropertiesRejectsInvalidKeys(t *testing.T) {
	var props Properties
	err := json.Unmarshal([]byte(`{"not-a-url": 1}`), &props)
	assert.Error(t, err)
}

// TestValueEqual verifies deep equality, including that distinct number
// literals of equal numeric value stay distinct.
func TestValueEqual(t *testing.T) {
	cases := []struct {
		name  string
		a, b  Value
		equal bool
	}{
		{"identical strings", StringValue("x"), StringValue("x"), true},
		{"different kinds", StringValue("1"), IntValue(1), false},
		{"same literal", IntValue(1), IntValue(1), true},
		{"literal 1 vs 1.0", IntValue(1), NumberValue(json.Number("1.0")), false},
		{"nulls", NullValue(), NullValue(), true},
		{
			"nested equal",
			ObjectValue(map[string]Value{"a": ArrayValue(IntValue(1), BooleanValue(true))}),
			ObjectValue(map[string]Value{"a": ArrayValue(IntValue(1), BooleanValue(true))}),
			true,
		},
		{
			"nested element differs",
			ObjectValue(map[string]Value{"a": ArrayValue(IntValue(1))}),
			ObjectValue(map[string]Value{"a": ArrayValue(IntValue(2))}),
			false,
		},
		{
			"extra key",
			ObjectValue(map[string]Value{"a": IntValue(1)}),
			ObjectValue(map[string]Value{"a": IntValue(1), "b": IntValue(2)}),
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.equal, tc.a.Equal(tc.b))
			assert.Equal(t, tc.equal, tc.b.Equal(tc.a))
		})
	}
}

// TestValueInterface verifies values unwrap into the plain shapes the
// filter evaluator consumes.
func TestValueInterface(t *testing.T) {
	v := ObjectValue(map[string]Value{
		"s": StringValue("x"),
		"n": IntValue(7),
		"a": ArrayValue(BooleanValue(true), NullValue()),
	})

	unwrapped, ok := v.Interface().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "x", unwrapped["s"])
	assert.Equal(t, json.Number("7"), unwrapped["n"])
	assert.Equal(t, []any{true, nil}, unwrapped["a"])
}

// TestValueZeroIsInvalid verifies the zero value refuses to marshal, the
// same discipline temporal bounds follow.
func TestValueZeroIsInvalid(t *testing.T) {
	var zero Value
	_, err := json.Marshal(zero)
	assert.Error(t, err)
}

// TestPropertiesEqualIgnoresOrder verifies bag equality is key-based, not
// ordered, and respects base-URL typing.
func TestPropertiesEqualIgnoresOrder(t *testing.T) {
	name := ontology.BaseURL("https://example.com/types/property-type/name/")
	age := ontology.BaseURL("https://example.com/types/property-type/age/")

	a := Properties{name: StringValue("Alice"), age: IntValue(30)}
	b := Properties{age: IntValue(30), name: StringValue("Alice")}
	assert.True(t, a.Equal(b))

	b[age] = IntValue(31)
	assert.False(t, a.Equal(b))
}
