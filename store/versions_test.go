package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/store/testutil"
	"github.com/stratumdb/stratum/temporal"
)

// assertDisjointVersions checks the interval layout every versioned
// identity must keep: transaction intervals pairwise non-overlapping with
// exactly one still open.
func assertDisjointVersions(t *testing.T, intervals []temporal.Interval) {
	t.Helper()
	open := 0
	for i, iv := range intervals {
		if iv.IsOpen() {
			open++
		}
		for _, other := range intervals[i+1:] {
			assert.False(t, iv.Overlaps(other), "versions %s and %s overlap", iv, other)
		}
	}
	assert.Equal(t, 1, open, "exactly one open version")
}

func storedIntervals(t *testing.T, db *sql.DB, query string, args ...any) []temporal.Interval {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), query, args...)
	require.NoError(t, err)
	defer rows.Close()

	var intervals []temporal.Interval
	for rows.Next() {
		var start string
		var end sql.NullString
		require.NoError(t, rows.Scan(&start, &end))
		iv, err := intervalFrom(start, end)
		require.NoError(t, err)
		intervals = append(intervals, iv)
	}
	require.NoError(t, rows.Err())
	return intervals
}

// TestEntityVersionsDoNotOverlap updates one entity repeatedly and checks
// the stored transaction intervals tile the timeline without overlap.
func TestEntityVersionsDoNotOverlap(t *testing.T) {
	s, ownedBy, actor := setupGraphStore(t)
	ctx := context.Background()

	alice := createPerson(t, s, ownedBy, actor, "Alice")
	id := alice.Metadata.RecordID.EntityID

	for _, name := range []string{"Alicia", "Alike"} {
		pause()
		_, err := s.UpdateEntity(ctx, UpdateEntityParams{
			EntityID:     id,
			EntityTypeID: ontology.MustParseVersionedURL(testPersonTypeURL),
			Properties:   namedProperties(name),
			Actor:        actor,
		})
		require.NoError(t, err)
	}

	intervals := storedIntervals(t, s.DB(),
		"SELECT transaction_start, transaction_end FROM entities WHERE owned_by_id = ? AND entity_uuid = ? ORDER BY seq",
		id.OwnedByID.String(), id.EntityUUID.String())
	require.Len(t, intervals, 3)
	assertDisjointVersions(t, intervals)
}

// TestOntologyEditionsDoNotOverlap walks a base URL through three editions
// and checks the same layout over the ontology table.
func TestOntologyEditionsDoNotOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ownedBy, actor := testutil.SeedWeb(t, s.DB())

	_, err := s.CreateDataType(ctx, testTextDataType(), ownedBy, actor)
	require.NoError(t, err)

	for version := uint32(2); version <= 3; version++ {
		pause()
		next := testTextDataType()
		next.ID = ontology.VersionedURL{Base: next.ID.Base, Version: version}
		_, err := s.UpdateDataType(ctx, next, actor)
		require.NoError(t, err)
	}

	intervals := storedIntervals(t, s.DB(),
		"SELECT transaction_start, transaction_end FROM ontology_types WHERE kind = 'data_type' AND base_url = ? ORDER BY seq",
		testTextDataType().ID.Base.String())
	require.Len(t, intervals, 3)
	assertDisjointVersions(t, intervals)
}
