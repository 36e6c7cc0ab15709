// Package databasetest opens throwaway SQLite databases with the harness schema.
package databasetest

import (
	"path/filepath"
	"testing"

	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/database"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	sqldb "github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/database"
	"github.com/stretchr/testify/require"
)

// Open creates a schema-initialized SQLite database in a temp dir. It is closed
// when the test ends.
func Open(t testing.TB) *sqldb.DB {
	t.Helper()

	db, err := sqldb.NewConnectionWithLogger(sqldb.Options{
		Driver: sqldb.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "harness.db"),
	}, logging.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewTableCreator().CreateSchema(db.DB))
	return db
}
