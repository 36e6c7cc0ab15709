package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchemaIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	defer db.Close()

	tc := NewTableCreator()

	exists, err := tc.TablesExist(db)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, tc.CreateSchema(db))
	require.NoError(t, tc.CreateSchema(db))

	exists, err = tc.TablesExist(db)
	require.NoError(t, err)
	assert.True(t, exists)
}
