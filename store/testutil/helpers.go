// Package testutil provides shared helpers for store tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/db"
	"github.com/stratumdb/stratum/provenance"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// Uses real migrations to ensure test schema matches production schema.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })

	_, err = testDB.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	err = db.Migrate(testDB, nil)
	require.NoError(t, err, "Failed to run migrations")

	return testDB
}

// SetupEmptyDB creates an in-memory SQLite database without any schema.
// Used for testing error handling when tables are missing.
func SetupEmptyDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })
	return testDB
}

// SeedAccount inserts an account row directly and returns its id.
func SeedAccount(t *testing.T, testDB *sql.DB) provenance.AccountID {
	t.Helper()

	id := provenance.NewAccountID(uuid.New())
	_, err := testDB.ExecContext(context.Background(),
		"INSERT INTO accounts (account_id, created_at) VALUES (?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))",
		id.String())
	require.NoError(t, err)
	return id
}

// SeedWeb inserts an account row and returns its identity both as the actor
// and as the web that owns records.
func SeedWeb(t *testing.T, testDB *sql.DB) (provenance.OwnedByID, provenance.AccountID) {
	t.Helper()

	actor := SeedAccount(t, testDB)
	return provenance.NewOwnedByID(uuid.UUID(actor)), actor
}
