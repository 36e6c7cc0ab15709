// Package history provides the SQL-based page-view history repository.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/history"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/security"
)

// SQLPageViewRepository stores page views in the page_views table.
type SQLPageViewRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLPageViewRepository creates a new instance of the repository.
func NewSQLPageViewRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLPageViewRepository {
	return &SQLPageViewRepository{
		db:     db,
		logger: logger,
	}
}

// Store saves a page view, assigning an ID and timestamp when missing.
func (r *SQLPageViewRepository) Store(ctx context.Context, view *history.PageView) error {
	if view.ID == "" {
		view.ID = security.GenerateULID()
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(view.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode page view payload: %w", err)
	}

	const query = `
		INSERT INTO page_views (id, visitor_id, url, name, utm_eligible, payload, sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err = r.db.ExecTimed(ctx, query,
		view.ID,
		view.VisitorID,
		view.URL,
		view.Name,
		view.UTMEligible,
		string(payload),
		view.Sent,
		database.FormatTime(view.CreatedAt),
	)
	if err != nil {
		r.logger.Database().Error("Page view insert failed",
			"error", err.Error(),
			"pageViewId", view.ID,
			"visitorId", view.VisitorID)
		return fmt.Errorf("failed to store page view: %w", err)
	}

	r.logger.Database().Debug("Page view insert completed",
		"pageViewId", view.ID,
		"visitorId", view.VisitorID,
		"eligible", view.UTMEligible,
		"sent", view.Sent,
		"duration", time.Since(start))
	return nil
}

// FindByVisitor returns the visitor's most recent page views, newest first.
func (r *SQLPageViewRepository) FindByVisitor(ctx context.Context, visitorID string, limit int) ([]*history.PageView, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, visitor_id, url, name, utm_eligible, payload, sent, created_at
		FROM page_views
		WHERE visitor_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryTimed(ctx, query, visitorID, limit)
	if err != nil {
		r.logger.Database().Error("Page view query failed", "error", err.Error(), "visitorId", visitorID)
		return nil, fmt.Errorf("failed to query page views: %w", err)
	}
	defer rows.Close()

	var views []*history.PageView
	for rows.Next() {
		var (
			view      history.PageView
			payload   string
			createdAt string
		)
		if err := rows.Scan(&view.ID, &view.VisitorID, &view.URL, &view.Name,
			&view.UTMEligible, &payload, &view.Sent, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan page view: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &view.Payload); err != nil {
			r.logger.Database().Warn("Skipping page view with unreadable payload",
				"pageViewId", view.ID, "error", err.Error())
			continue
		}
		if view.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, err
		}
		views = append(views, &view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate page views: %w", err)
	}
	return views, nil
}

// PurgeOlderThan deletes page views created before cutoff.
func (r *SQLPageViewRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM page_views WHERE created_at < ?`

	result, err := r.db.ExecTimed(ctx, query, database.FormatTime(cutoff))
	if err != nil {
		r.logger.Database().Error("Page view purge failed", "error", err.Error())
		return 0, fmt.Errorf("failed to purge page views: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged page views: %w", err)
	}
	if n > 0 {
		r.logger.Database().Info("Purged old page views", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
