package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestMigrations(t *testing.T) {
	db, err := openDatabase(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))
	// idempotent
	require.NoError(t, ApplyMigrations(ctx, db))

	v, err := currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
	assert.True(t, tableExists(t, db, "chunks"))
	assert.True(t, tableExists(t, db, "idx_chunks_hash"))

	require.NoError(t, RollbackMigration(ctx, db))
	v, err = currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())
	assert.False(t, tableExists(t, db, "idx_chunks_hash"))

	require.NoError(t, RollbackMigration(ctx, db))
	assert.False(t, tableExists(t, db, "chunks"))
	assert.Error(t, RollbackMigration(ctx, db))
}
