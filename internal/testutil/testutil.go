// Package testutil holds shared helpers for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsuji/bunkei/internal/db"
)

// NewTestDB opens an in-memory SQLite database with all migrations applied
// and closes it when the test finishes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	t.Helper()
	require.NoError(t, closer.Close())
}
