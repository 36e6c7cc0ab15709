package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/database"
)

// SQLDurableStore keeps every visitor's durable storage in the durable_storage table.
type SQLDurableStore struct {
	db *database.DB
}

// NewSQLDurableStore creates the store.
func NewSQLDurableStore(db *database.DB) *SQLDurableStore {
	return &SQLDurableStore{db: db}
}

// ForVisitor returns the durable storage scoped to one visitor.
func (s *SQLDurableStore) ForVisitor(visitorID string) attribution.DurableKeyValueStore {
	return &visitorStore{db: s.db, visitorID: visitorID}
}

// Keys lists the storage keys held for a visitor.
func (s *SQLDurableStore) Keys(ctx context.Context, visitorID string) ([]string, error) {
	const query = `SELECT storage_key FROM durable_storage WHERE visitor_id = ? ORDER BY storage_key`

	rows, err := s.db.QueryTimed(ctx, query, visitorID)
	if err != nil {
		s.db.Logger().Database().Error("Durable key listing failed", "error", err.Error(), "visitorId", visitorID)
		return nil, fmt.Errorf("failed to list durable keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan durable key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

type visitorStore struct {
	db        *database.DB
	visitorID string
}

func (v *visitorStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM durable_storage WHERE visitor_id = ? AND storage_key = ?`

	var value string
	err := v.db.QueryRowTimed(ctx, query, v.visitorID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		v.db.Logger().Database().Error("Durable storage read failed",
			"error", err.Error(), "visitorId", v.visitorID, "key", key)
		return "", false, fmt.Errorf("failed to read durable item: %w", err)
	}
	return value, true, nil
}

func (v *visitorStore) SetItem(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO durable_storage (visitor_id, storage_key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(visitor_id, storage_key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`

	_, err := v.db.ExecTimed(ctx, query, v.visitorID, key, value, database.FormatTime(time.Now()))
	if err != nil {
		v.db.Logger().Database().Error("Durable storage write failed",
			"error", err.Error(), "visitorId", v.visitorID, "key", key)
		return fmt.Errorf("failed to write durable item: %w", err)
	}
	return nil
}

func (v *visitorStore) RemoveItem(ctx context.Context, key string) error {
	const query = `DELETE FROM durable_storage WHERE visitor_id = ? AND storage_key = ?`

	if _, err := v.db.ExecTimed(ctx, query, v.visitorID, key); err != nil {
		v.db.Logger().Database().Error("Durable storage delete failed",
			"error", err.Error(), "visitorId", v.visitorID, "key", key)
		return fmt.Errorf("failed to remove durable item: %w", err)
	}
	return nil
}
