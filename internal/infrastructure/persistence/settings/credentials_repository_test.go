package settings

import (
	"context"
	"testing"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/credentials"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/database/databasetest"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsRepository(t *testing.T) {
	ctx := context.Background()
	db := databasetest.Open(t)
	keys, err := security.DeriveKeys("test-secret")
	require.NoError(t, err)
	repo := NewSQLCredentialsRepository(db, logging.NewDiscardLogger(), keys.Encryption)

	creds, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)

	saved := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, &credentials.Credentials{
		WriteKey: "wk_live_abcdef", Region: "eu", SiteID: "site-1", UpdatedAt: saved,
	}))

	var stored string
	require.NoError(t, db.QueryRow(`SELECT value FROM harness_settings WHERE setting_key = ?`, keyWriteKey).Scan(&stored))
	assert.NotEqual(t, "wk_live_abcdef", stored, "write key is encrypted at rest")

	creds, err = repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "wk_live_abcdef", creds.WriteKey)
	assert.Equal(t, "eu", creds.Region)
	assert.Equal(t, "site-1", creds.SiteID)
	assert.True(t, creds.UpdatedAt.Equal(saved))

	require.NoError(t, repo.Save(ctx, &credentials.Credentials{WriteKey: "wk_2", Region: "us"}))
	creds, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wk_2", creds.WriteKey)
	assert.Equal(t, "", creds.SiteID)

	require.NoError(t, repo.Clear(ctx))
	creds, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestCredentialsRepositoryWrongKey(t *testing.T) {
	ctx := context.Background()
	db := databasetest.Open(t)
	a, _ := security.DeriveKeys("a")
	b, _ := security.DeriveKeys("b")

	require.NoError(t, NewSQLCredentialsRepository(db, logging.NewDiscardLogger(), a.Encryption).
		Save(ctx, &credentials.Credentials{WriteKey: "wk", Region: "us"}))

	_, err := NewSQLCredentialsRepository(db, logging.NewDiscardLogger(), b.Encryption).Load(ctx)
	assert.ErrorIs(t, err, security.ErrInvalidCiphertext)
}
