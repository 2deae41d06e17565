package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/errors"
)

// TestParsePath covers the path vocabulary of every record kind and the
// compile-time rejections for unknown or malformed segments.
func TestParsePath(t *testing.T) {
	tests := []struct {
		name         string
		kind         RecordKind
		segments     []string
		wantExpected ParameterType
		wantErr      string
	}{
		{
			name:         "ontology base url",
			kind:         RecordKindDataType,
			segments:     []string{"baseUrl"},
			wantExpected: ParameterTypeBaseURL,
		},
		{
			name:         "ontology version",
			kind:         RecordKindPropertyType,
			segments:     []string{"version"},
			wantExpected: ParameterTypeVersion,
		},
		{
			name:         "ontology versioned url",
			kind:         RecordKindEntityType,
			segments:     []string{"versionedUrl"},
			wantExpected: ParameterTypeVersionedURL,
		},
		{
			name:         "data type json type",
			kind:         RecordKindDataType,
			segments:     []string{"type"},
			wantExpected: ParameterTypeText,
		},
		{
			name:     "json type is data type only",
			kind:     RecordKindPropertyType,
			segments: []string{"type"},
			wantErr:  "not an attribute",
		},
		{
			name:     "ontology path with trailing segment",
			kind:     RecordKindEntityType,
			segments: []string{"title", "extra"},
			wantErr:  "takes no further segments",
		},
		{
			name:         "entity uuid",
			kind:         RecordKindEntity,
			segments:     []string{"uuid"},
			wantExpected: ParameterTypeUUID,
		},
		{
			name:         "entity archived",
			kind:         RecordKindEntity,
			segments:     []string{"archived"},
			wantExpected: ParameterTypeBoolean,
		},
		{
			name:         "entity type versioned url",
			kind:         RecordKindEntity,
			segments:     []string{"type", "versionedUrl"},
			wantExpected: ParameterTypeVersionedURL,
		},
		{
			name:     "entity type without attribute",
			kind:     RecordKindEntity,
			segments: []string{"type"},
			wantErr:  "requires an entity type attribute",
		},
		{
			name:         "entity property",
			kind:         RecordKindEntity,
			segments:     []string{"properties", "https://example.com/types/property-type/name/"},
			wantExpected: ParameterTypeAny,
		},
		{
			name:         "entity property subtree",
			kind:         RecordKindEntity,
			segments:     []string{"properties", "https://example.com/types/property-type/address/", "https://example.com/types/property-type/city/"},
			wantExpected: ParameterTypeAny,
		},
		{
			name:     "entity property with invalid base url",
			kind:     RecordKindEntity,
			segments: []string{"properties", "not-a-url"},
			wantErr:  "not a valid property type base URL",
		},
		{
			name:         "left endpoint uuid",
			kind:         RecordKindEntity,
			segments:     []string{"leftEntity", "uuid"},
			wantExpected: ParameterTypeUUID,
		},
		{
			name:     "left endpoint property",
			kind:     RecordKindEntity,
			segments: []string{"leftEntity", "properties"},
			wantErr:  "only uuid and ownedById",
		},
		{
			name:     "unknown entity attribute",
			kind:     RecordKindEntity,
			segments: []string{"color"},
			wantErr:  "not an attribute of entity records",
		},
		{
			name:     "empty path",
			kind:     RecordKindEntity,
			segments: nil,
			wantErr:  "empty path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePath(tt.kind, tt.segments)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.ErrorIs(t, err, errors.ErrInvalidPath)

				var invalid *errors.InvalidPathError
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExpected, p.ExpectedType())
			assert.Equal(t, tt.kind, p.Kind())
			assert.Equal(t, tt.segments, p.Segments())
		})
	}
}

// TestPathAccessors verifies the split helpers the store compiler relies on.
func TestPathAccessors(t *testing.T) {
	prop, err := ParsePath(RecordKindEntity, []string{"properties", "https://example.com/types/property-type/address/", "https://example.com/types/property-type/city/"})
	require.NoError(t, err)
	base, below, ok := prop.PropertyPath()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/types/property-type/address/", base.String())
	assert.Equal(t, []string{"https://example.com/types/property-type/city/"}, below)

	endpoint, err := ParsePath(RecordKindEntity, []string{"rightEntity", "ownedById"})
	require.NoError(t, err)
	side, attr, ok := endpoint.EndpointPath()
	require.True(t, ok)
	assert.Equal(t, "rightEntity", side)
	assert.Equal(t, "ownedById", attr)

	typed, err := ParsePath(RecordKindEntity, []string{"type", "baseUrl"})
	require.NoError(t, err)
	attr, ok = typed.TypePath()
	require.True(t, ok)
	assert.Equal(t, "baseUrl", attr)

	_, _, ok = typed.PropertyPath()
	assert.False(t, ok)
}
