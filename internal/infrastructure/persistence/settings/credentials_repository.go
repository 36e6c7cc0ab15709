// Package settings provides the SQL-based credentials repository.
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/credentials"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/security"
)

const (
	keyWriteKey = "cio.write_key"
	keyRegion   = "cio.region"
	keySiteID   = "cio.site_id"
)

// SQLCredentialsRepository stores credentials in harness_settings. The write key
// is stored AES-GCM encrypted.
type SQLCredentialsRepository struct {
	db            *database.DB
	logger        *logging.ChanneledLogger
	encryptionKey []byte
}

// NewSQLCredentialsRepository creates a new instance of the repository.
func NewSQLCredentialsRepository(db *database.DB, logger *logging.ChanneledLogger, encryptionKey []byte) *SQLCredentialsRepository {
	return &SQLCredentialsRepository{
		db:            db,
		logger:        logger,
		encryptionKey: encryptionKey,
	}
}

// Load returns the stored credentials, or nil when no write key is stored.
func (r *SQLCredentialsRepository) Load(ctx context.Context) (*credentials.Credentials, error) {
	const query = `SELECT setting_key, value, encrypted, updated_at FROM harness_settings WHERE setting_key IN (?, ?, ?)`

	rows, err := r.db.QueryTimed(ctx, query, keyWriteKey, keyRegion, keySiteID)
	if err != nil {
		r.logger.Database().Error("Credentials query failed", "error", err.Error())
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	defer rows.Close()

	creds := &credentials.Credentials{}
	for rows.Next() {
		var (
			key, value, updatedAt string
			encrypted             bool
		)
		if err := rows.Scan(&key, &value, &encrypted, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if encrypted {
			if value, err = security.Decrypt(value, r.encryptionKey); err != nil {
				r.logger.Database().Error("Stored setting could not be decrypted", "key", key, "error", err.Error())
				return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
			}
		}
		switch key {
		case keyWriteKey:
			creds.WriteKey = value
			if t, err := database.ParseTime(updatedAt); err == nil {
				creds.UpdatedAt = t
			}
		case keyRegion:
			creds.Region = value
		case keySiteID:
			creds.SiteID = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}

	if creds.WriteKey == "" {
		return nil, nil
	}
	return creds, nil
}

// Save replaces the stored credentials in one transaction.
func (r *SQLCredentialsRepository) Save(ctx context.Context, creds *credentials.Credentials) error {
	encryptedKey, err := security.Encrypt(creds.WriteKey, r.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt write key: %w", err)
	}

	const upsert = `
		INSERT INTO harness_settings (setting_key, value, encrypted, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			value = excluded.value,
			encrypted = excluded.encrypted,
			updated_at = excluded.updated_at`

	now := creds.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	stamp := database.FormatTime(now)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	settings := []struct {
		key       string
		value     string
		encrypted bool
	}{
		{keyWriteKey, encryptedKey, true},
		{keyRegion, creds.Region, false},
		{keySiteID, creds.SiteID, false},
	}
	for _, s := range settings {
		if _, err := tx.ExecContext(ctx, upsert, s.key, s.value, s.encrypted, stamp); err != nil {
			r.logger.Database().Error("Credential setting upsert failed", "key", s.key, "error", err.Error())
			return fmt.Errorf("failed to save %s: %w", s.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}
	r.logger.Database().Info("Credentials saved", "region", creds.Region, "hasSiteId", creds.SiteID != "")
	return nil
}

// Clear removes the stored credentials.
func (r *SQLCredentialsRepository) Clear(ctx context.Context) error {
	const query = `DELETE FROM harness_settings WHERE setting_key IN (?, ?, ?)`

	if _, err := r.db.ExecTimed(ctx, query, keyWriteKey, keyRegion, keySiteID); err != nil {
		r.logger.Database().Error("Credentials delete failed", "error", err.Error())
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

var _ credentials.Repository = (*SQLCredentialsRepository)(nil)

