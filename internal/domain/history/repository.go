// Package history defines the page-view history kept for the UTM test page.
package history

import (
	"context"
	"time"
)

// PageView is one built page payload, whether or not it reached the CDP.
type PageView struct {
	ID          string         `json:"id"`
	VisitorID   string         `json:"visitorId"`
	URL         string         `json:"url"`
	Name        string         `json:"name,omitempty"`
	UTMEligible bool           `json:"utmEligible"`
	Payload     map[string]any `json:"payload"`
	Sent        bool           `json:"sent"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// PageViewRepository persists page-view history.
type PageViewRepository interface {
	Store(ctx context.Context, view *PageView) error
	FindByVisitor(ctx context.Context, visitorID string, limit int) ([]*PageView, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
