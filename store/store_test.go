package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/graph"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/provenance"
	"github.com/stratumdb/stratum/temporal"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewStore(mockDB, zaptest.NewLogger(t).Sugar()), mock
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when the body succeeds", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE entities").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "UPDATE entities SET archived = 1")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the body fails", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		bodyErr := errors.New("body failed")
		err := s.withTx(ctx, func(tx *sql.Tx) error { return bodyErr })
		assert.ErrorIs(t, err, bodyErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("surfaces begin failure", func(t *testing.T) {
		s, mock := newMockStore(t)
		beginErr := errors.New("database is locked")
		mock.ExpectBegin().WillReturnError(beginErr)

		err := s.withTx(ctx, func(tx *sql.Tx) error { return nil })
		assert.ErrorIs(t, err, beginErr)
	})

	t.Run("wraps commit failure", func(t *testing.T) {
		s, mock := newMockStore(t)
		commitErr := errors.New("disk I/O error")
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(commitErr)

		err := s.withTx(ctx, func(tx *sql.Tx) error { return nil })
		assert.ErrorIs(t, err, commitErr)
	})
}

// memoryProvider serves type editions from memory so resolution never
// touches the mocked database.
type memoryProvider struct {
	dataTypes     map[ontology.VersionedURL]*ontology.DataTypeWithMetadata
	propertyTypes map[ontology.VersionedURL]*ontology.PropertyTypeWithMetadata
	entityTypes   map[ontology.VersionedURL]*ontology.EntityTypeWithMetadata
}

func (p *memoryProvider) GetDataType(_ context.Context, url ontology.VersionedURL) (*ontology.DataTypeWithMetadata, error) {
	if dt, ok := p.dataTypes[url]; ok {
		return dt, nil
	}
	return nil, errors.WithStack(&errors.NotFoundError{Kind: "data type", ID: url.String()})
}

func (p *memoryProvider) GetPropertyType(_ context.Context, url ontology.VersionedURL) (*ontology.PropertyTypeWithMetadata, error) {
	if pt, ok := p.propertyTypes[url]; ok {
		return pt, nil
	}
	return nil, errors.WithStack(&errors.NotFoundError{Kind: "property type", ID: url.String()})
}

func (p *memoryProvider) GetEntityType(_ context.Context, url ontology.VersionedURL) (*ontology.EntityTypeWithMetadata, error) {
	if et, ok := p.entityTypes[url]; ok {
		return et, nil
	}
	return nil, errors.WithStack(&errors.NotFoundError{Kind: "entity type", ID: url.String()})
}

func personClosureProvider() *memoryProvider {
	text := testTextDataType()
	name := testNamePropertyType()
	person := testPersonEntityType()
	return &memoryProvider{
		dataTypes: map[ontology.VersionedURL]*ontology.DataTypeWithMetadata{
			text.ID: {Schema: *text},
		},
		propertyTypes: map[ontology.VersionedURL]*ontology.PropertyTypeWithMetadata{
			name.ID: {Schema: *name},
		},
		entityTypes: map[ontology.VersionedURL]*ontology.EntityTypeWithMetadata{
			person.ID: {Schema: *person},
		},
	}
}

// TestUpdateEntityLosesRace stages the losing side of a concurrent update:
// the open version is read, but by the time the close UPDATE runs another
// writer has already closed it, so zero rows are affected.
func TestUpdateEntityLosesRace(t *testing.T) {
	s, mock := newMockStore(t)
	s.UseResolver(ontology.NewResolver(personClosureProvider(), nil, nil, 0))

	id := graph.NewEntityID(
		provenance.NewOwnedByID(uuid.New()),
		graph.NewEntityUUID(uuid.New()),
	)
	actor := provenance.NewAccountID(uuid.New())
	now := temporal.Now().String()

	columns := append([]string{"seq"}, strings.Split(entityColumns, ", ")...)
	person := testPersonEntityType()
	open := sqlmock.NewRows(columns).AddRow(
		7,
		id.OwnedByID.String(), id.EntityUUID.String(), uuid.NewString(),
		person.ID.Base.String(), person.ID.Version,
		`{"https://example.com/types/property-type/name/":"Old"}`,
		nil, nil, nil, nil, nil, nil,
		false, actor.String(), nil,
		now, nil, now, nil,
	)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT seq, .+ FROM entities WHERE owned_by_id").WillReturnRows(open)
	mock.ExpectExec("UPDATE entities SET transaction_end").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.UpdateEntity(context.Background(), UpdateEntityParams{
		EntityID:     id,
		EntityTypeID: person.ID,
		Properties:   namedProperties("New"),
		Actor:        actor,
	})
	require.Error(t, err)
	assert.True(t, errors.IsConcurrentModificationError(err))

	var detail *errors.ConcurrentModificationError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, id.String(), detail.EntityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
