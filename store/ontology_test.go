package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/query"
	"github.com/stratumdb/stratum/store/testutil"
	"github.com/stratumdb/stratum/temporal"
)

const testTextDataTypeURL = "https://example.com/types/data-type/text/v/1"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	testDB := testutil.SetupTestDB(t)
	return NewStore(testDB, zaptest.NewLogger(t).Sugar())
}

func testTextDataType() *ontology.DataType {
	return &ontology.DataType{
		Schema: ontology.DataTypeSchemaURL,
		Kind:   ontology.DataTypeKind,
		ID:     ontology.MustParseVersionedURL(testTextDataTypeURL),
		Title:  "Text",
		Type:   ontology.JSONTypeString,
	}
}

func testNamePropertyType() *ontology.PropertyType {
	return &ontology.PropertyType{
		Schema: ontology.PropertyTypeSchemaURL,
		Kind:   ontology.PropertyTypeKind,
		ID:     ontology.MustParseVersionedURL("https://example.com/types/property-type/name/v/1"),
		Title:  "Name",
		OneOf: []ontology.PropertyValue{{
			DataTypeRef: &ontology.TypeReference{URL: ontology.MustParseVersionedURL(testTextDataTypeURL)},
		}},
	}
}

func testPersonEntityType() *ontology.EntityType {
	return &ontology.EntityType{
		Schema: ontology.EntityTypeSchemaURL,
		Kind:   ontology.EntityTypeKind,
		ID:     ontology.MustParseVersionedURL("https://example.com/types/entity-type/person/v/1"),
		Type:   ontology.JSONTypeObject,
		Title:  "Person",
		Properties: map[ontology.BaseURL]ontology.PropertySlot{
			"https://example.com/types/property-type/name/": {
				Ref: &ontology.TypeReference{URL: ontology.MustParseVersionedURL("https://example.com/types/property-type/name/v/1")},
			},
		},
		Required: []ontology.BaseURL{"https://example.com/types/property-type/name/"},
	}
}

// pause guarantees the next Now() is a distinct instant from the previous
// one at the stored timestamp precision.
func pause() {
	time.Sleep(2 * time.Millisecond)
}

func TestCreateDataType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	created, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
	require.NoError(t, err)
	assert.Equal(t, "Text", created.Schema.Title)
	assert.False(t, created.Metadata.IsExternal())
	assert.True(t, created.Metadata.TemporalVersioning.TransactionTime.IsOpen())

	t.Run("round-trips through the current view", func(t *testing.T) {
		got, err := s.GetDataType(ctx, testTextDataType().ID)
		require.NoError(t, err)
		assert.Equal(t, "Text", got.Schema.Title)
		assert.Equal(t, ontology.JSONTypeString, got.Schema.Type)
	})

	t.Run("rejects reuse of the base URL", func(t *testing.T) {
		_, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
		require.Error(t, err)
		assert.True(t, errors.IsAlreadyExistsError(err))
	})

	t.Run("rejects creation at a version other than 1", func(t *testing.T) {
		schema := testTextDataType()
		schema.ID = ontology.MustParseVersionedURL("https://example.com/types/data-type/number/v/3")
		schema.Title = "Number"
		schema.Type = ontology.JSONTypeNumber
		_, err := s.CreateDataType(ctx, schema, ownedBy, actor)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidRequest)
	})

	t.Run("rejects an invalid schema document", func(t *testing.T) {
		schema := testTextDataType()
		schema.ID = ontology.MustParseVersionedURL("https://example.com/types/data-type/broken/v/1")
		schema.Title = ""
		_, err := s.CreateDataType(ctx, schema, ownedBy, actor)
		require.Error(t, err)
	})
}

func TestUpdateDataType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	_, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
	require.NoError(t, err)
	pause()

	t.Run("accepts the next version", func(t *testing.T) {
		next := testTextDataType()
		next.ID = ontology.MustParseVersionedURL("https://example.com/types/data-type/text/v/2")
		next.Description = "Plain text"

		updated, err := s.UpdateDataType(ctx, next, actor)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), updated.Schema.ID.Version)

		got, err := s.GetDataType(ctx, next.ID)
		require.NoError(t, err)
		assert.Equal(t, "Plain text", got.Schema.Description)
	})

	t.Run("rejects a stale version token", func(t *testing.T) {
		stale := testTextDataType()
		stale.ID = ontology.MustParseVersionedURL("https://example.com/types/data-type/text/v/2")

		_, err := s.UpdateDataType(ctx, stale, actor)
		require.Error(t, err)
		assert.True(t, errors.IsVersionConflictError(err))

		var conflict *errors.VersionConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, uint32(3), conflict.Expected)
		assert.Equal(t, uint32(2), conflict.Actual)
	})

	t.Run("rejects skipping versions", func(t *testing.T) {
		skipped := testTextDataType()
		skipped.ID = ontology.MustParseVersionedURL("https://example.com/types/data-type/text/v/9")
		_, err := s.UpdateDataType(ctx, skipped, actor)
		require.Error(t, err)
		assert.True(t, errors.IsVersionConflictError(err))
	})

	t.Run("rejects an unknown base URL", func(t *testing.T) {
		unknown := testTextDataType()
		unknown.ID = ontology.MustParseVersionedURL("https://example.com/types/data-type/nope/v/2")
		_, err := s.UpdateDataType(ctx, unknown, actor)
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("prior versions stay readable at a pinned instant", func(t *testing.T) {
		got, err := s.GetDataType(ctx, testTextDataType().ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), got.Schema.ID.Version)
	})
}

func TestArchiveDataType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	_, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
	require.NoError(t, err)
	pause()
	beforeArchive := temporal.Now()
	pause()

	url := testTextDataType().ID
	require.NoError(t, s.ArchiveDataType(ctx, url, actor))

	t.Run("removes the type from the current view", func(t *testing.T) {
		_, err := s.GetDataType(ctx, url)
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("keeps the type readable at a pre-archive instant", func(t *testing.T) {
		got, err := s.DataTypeAt(ctx, url, temporal.PinnedAxes{
			DecisionTime:    beforeArchive,
			TransactionTime: beforeArchive,
		})
		require.NoError(t, err)
		assert.Equal(t, "Text", got.Schema.Title)
	})

	t.Run("rejects archiving twice", func(t *testing.T) {
		err := s.ArchiveDataType(ctx, url, actor)
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})

	t.Run("unarchive restores the current view", func(t *testing.T) {
		pause()
		require.NoError(t, s.UnarchiveDataType(ctx, url, actor))

		got, err := s.GetDataType(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, "Text", got.Schema.Title)
	})

	t.Run("rejects unarchiving a live type", func(t *testing.T) {
		err := s.UnarchiveDataType(ctx, url, actor)
		require.Error(t, err)
		assert.True(t, errors.IsAlreadyExistsError(err))
	})
}

func TestCreatePropertyType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	t.Run("rejects a dangling data type reference", func(t *testing.T) {
		_, err := s.CreatePropertyType(ctx, testNamePropertyType(), ownedBy, actor)
		require.Error(t, err)
	})

	t.Run("accepts once the referenced data type exists", func(t *testing.T) {
		_, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
		require.NoError(t, err)

		created, err := s.CreatePropertyType(ctx, testNamePropertyType(), ownedBy, actor)
		require.NoError(t, err)
		assert.Equal(t, "Name", created.Schema.Title)

		got, err := s.GetPropertyType(ctx, testNamePropertyType().ID)
		require.NoError(t, err)
		require.Len(t, got.Schema.OneOf, 1)
		assert.Equal(t, testTextDataTypeURL, got.Schema.OneOf[0].DataTypeRef.URL.String())
	})
}

func TestCreateEntityType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	t.Run("rejects a dangling property type reference", func(t *testing.T) {
		_, err := s.CreateEntityType(ctx, testPersonEntityType(), nil, ownedBy, actor)
		require.Error(t, err)
	})

	t.Run("accepts once the referenced types exist", func(t *testing.T) {
		_, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
		require.NoError(t, err)
		_, err = s.CreatePropertyType(ctx, testNamePropertyType(), ownedBy, actor)
		require.NoError(t, err)

		created, err := s.CreateEntityType(ctx, testPersonEntityType(), nil, ownedBy, actor)
		require.NoError(t, err)
		assert.Equal(t, "Person", created.Schema.Title)

		got, err := s.GetEntityType(ctx, testPersonEntityType().ID)
		require.NoError(t, err)
		assert.Contains(t, got.Schema.Required, ontology.BaseURL("https://example.com/types/property-type/name/"))
		assert.Nil(t, got.LabelProperty)
	})
}

func TestEntityTypeLabelProperty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	_, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
	require.NoError(t, err)
	_, err = s.CreatePropertyType(ctx, testNamePropertyType(), ownedBy, actor)
	require.NoError(t, err)

	nameBase := ontology.BaseURL(testNamePropertyBase)

	t.Run("rejects a label the type does not declare", func(t *testing.T) {
		stranger := ontology.BaseURL("https://example.com/types/property-type/age/")
		_, err := s.CreateEntityType(ctx, testPersonEntityType(), &stranger, ownedBy, actor)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	})

	created, err := s.CreateEntityType(ctx, testPersonEntityType(), &nameBase, ownedBy, actor)
	require.NoError(t, err)
	require.NotNil(t, created.LabelProperty)
	assert.Equal(t, nameBase, *created.LabelProperty)
	beforeUpdate := temporal.Now()
	pause()

	t.Run("round-trips through reads", func(t *testing.T) {
		got, err := s.GetEntityType(ctx, testPersonEntityType().ID)
		require.NoError(t, err)
		require.NotNil(t, got.LabelProperty)
		assert.Equal(t, nameBase, *got.LabelProperty)
	})

	t.Run("an update may clear it", func(t *testing.T) {
		next := testPersonEntityType()
		next.ID = ontology.MustParseVersionedURL("https://example.com/types/entity-type/person/v/2")
		updated, err := s.UpdateEntityType(ctx, next, nil, actor)
		require.NoError(t, err)
		assert.Nil(t, updated.LabelProperty)

		got, err := s.GetEntityType(ctx, next.ID)
		require.NoError(t, err)
		assert.Nil(t, got.LabelProperty)
	})

	t.Run("the prior edition keeps its label at a pinned view", func(t *testing.T) {
		at := temporal.PinnedAxes{DecisionTime: beforeUpdate, TransactionTime: beforeUpdate}
		got, err := s.EntityTypeAt(ctx, testPersonEntityType().ID, at)
		require.NoError(t, err)
		require.NotNil(t, got.LabelProperty)
		assert.Equal(t, nameBase, *got.LabelProperty)
	})
}

func TestQueryDataTypes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	_, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
	require.NoError(t, err)

	number := testTextDataType()
	number.ID = ontology.MustParseVersionedURL("https://example.com/types/data-type/number/v/1")
	number.Title = "Number"
	number.Type = ontology.JSONTypeNumber
	_, err = s.CreateDataType(ctx, number, ownedBy, actor)
	require.NoError(t, err)

	t.Run("selects by versioned URL", func(t *testing.T) {
		filter := query.FilterForVersionedURL(query.RecordKindDataType, testTextDataType().ID)
		got, err := s.QueryDataTypes(ctx, &filter, temporal.QueryAxes{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Text", got[0].Schema.Title)
	})

	t.Run("selects the open edition with the latest marker", func(t *testing.T) {
		pause()
		next := testTextDataType()
		next.ID = ontology.MustParseVersionedURL("https://example.com/types/data-type/text/v/2")
		_, err := s.UpdateDataType(ctx, next, actor)
		require.NoError(t, err)

		filter := query.FilterForLatestBaseURL(query.RecordKindDataType, testTextDataType().ID.Base)
		got, err := s.QueryDataTypes(ctx, &filter, temporal.QueryAxes{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, uint32(2), got[0].Schema.ID.Version)
	})

	t.Run("archived types drop out of the latest view", func(t *testing.T) {
		pause()
		require.NoError(t, s.ArchiveDataType(ctx, number.ID, actor))

		filter := query.FilterForVersionedURL(query.RecordKindDataType, number.ID)
		got, err := s.QueryDataTypes(ctx, &filter, temporal.QueryAxes{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLoadExternalDataType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, actor := testutil.SeedWeb(t, s.DB())

	fetchedAt := temporal.Now()
	loaded, err := s.LoadExternalDataType(ctx, testTextDataType(), actor, fetchedAt)
	require.NoError(t, err)
	assert.True(t, loaded.Metadata.IsExternal())

	t.Run("round-trips with external provenance", func(t *testing.T) {
		got, err := s.GetDataType(ctx, testTextDataType().ID)
		require.NoError(t, err)
		assert.True(t, got.Metadata.IsExternal())
	})

	t.Run("rejects loading the same version twice", func(t *testing.T) {
		_, err := s.LoadExternalDataType(ctx, testTextDataType(), actor, temporal.Now())
		require.Error(t, err)
		assert.True(t, errors.IsAlreadyExistsError(err))
	})
}

func TestSeedDataTypes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	seeded, err := s.SeedDataTypes(ctx, ownedBy, actor)
	require.NoError(t, err)
	assert.Greater(t, seeded, 0)

	primitives, err := ontology.PrimitiveDataTypes()
	require.NoError(t, err)
	assert.Equal(t, len(primitives), seeded)

	for _, primitive := range primitives {
		_, err := s.GetDataType(ctx, primitive.ID)
		require.NoError(t, err, "primitive %s should be stored", primitive.ID)
	}

	t.Run("reseeding is a no-op", func(t *testing.T) {
		seeded, err := s.SeedDataTypes(ctx, ownedBy, actor)
		require.NoError(t, err)
		assert.Zero(t, seeded)
	})
}
