package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/domain/history"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
)

// Storage layers accepted by Clear.
const (
	LayerDurable = "durable"
	LayerCookie  = "cookie"
	LayerAll     = "all"
)

var ErrUnknownLayer = errors.New("layer must be durable, cookie or all")

// DurableProvider hands out per-visitor durable storage.
type DurableProvider interface {
	ForVisitor(visitorID string) attribution.DurableKeyValueStore
}

// AttributionService runs the attribution store for a visitor's page views.
type AttributionService struct {
	durable     DurableProvider
	pageViews   history.PageViewRepository
	notifier    messaging.AttributionNotifier
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewAttributionService creates the service. pageViews and notifier may be nil.
func NewAttributionService(
	durable DurableProvider,
	pageViews history.PageViewRepository,
	notifier messaging.AttributionNotifier,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *AttributionService {
	return &AttributionService{
		durable:     durable,
		pageViews:   pageViews,
		notifier:    notifier,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// StoreFor creates the attribution store for one page view.
func (s *AttributionService) StoreFor(visitorID string, jar attribution.CookieJar, pageURL *url.URL) *attribution.Store {
	var durable attribution.DurableKeyValueStore
	if s.durable != nil {
		durable = s.durable.ForVisitor(visitorID)
	}
	return attribution.NewStore(durable, jar, pageURL, s.logger.WithVisitor(logging.ChannelUTM, visitorID))
}

// DebugState is the view of the UTM test page after a page view.
type DebugState struct {
	VisitorID   string                  `json:"visitorId"`
	URL         string                  `json:"url"`
	HasUTMs     bool                    `json:"hasUtms"`
	UTMData     attribution.Record      `json:"utmData"`
	FromURL     attribution.Record      `json:"fromUrl"`
	Durable     attribution.Record      `json:"localStorageUtms"`
	Cookie      attribution.Record      `json:"cookieUtms"`
	PagePayload attribution.PagePayload `json:"pagePayload"`
}

// VisitorType labels the visitor as campaign or organic traffic.
func (d *DebugState) VisitorType() string {
	if d.HasUTMs {
		return "Campaign Visitor"
	}
	return "Organic Visitor"
}

// PageView runs one page view: syncs both layers and builds the page payload.
func (s *AttributionService) PageView(ctx context.Context, visitorID string, jar attribution.CookieJar, pageURL *url.URL) *DebugState {
	marker := s.perfTracker.StartOperation("attribution_page_view", visitorID)
	defer marker.Complete()

	store := s.StoreFor(visitorID, jar, pageURL)
	record, payload := store.SyncPagePayload(ctx)
	state := &DebugState{
		VisitorID:   visitorID,
		URL:         store.PageURL(),
		HasUTMs:     payload.Eligible(),
		UTMData:     record,
		FromURL:     store.FromCurrentURL(),
		Durable:     store.ReadDurable(ctx),
		Cookie:      store.ReadCookie(),
		PagePayload: payload,
	}

	marker.AddMetadata("eligible", state.HasUTMs)
	if state.HasUTMs {
		s.logger.UTM().Info("Campaign visitor, UTM data attached", "visitorId", visitorID, "fields", len(state.UTMData))
		s.notify(visitorID, messaging.AttributionEvent{Kind: "synced", Durable: state.Durable, Cookie: state.Cookie})
	} else {
		s.logger.UTM().Debug("Organic visitor, no UTM data attached", "visitorId", visitorID)
	}
	return state
}

// Clear removes the visitor's attribution from one or both layers.
func (s *AttributionService) Clear(ctx context.Context, visitorID string, jar attribution.CookieJar, layer string) error {
	marker := s.perfTracker.StartOperation("attribution_clear", visitorID)
	defer marker.Complete()

	store := s.StoreFor(visitorID, jar, nil)
	switch layer {
	case LayerDurable:
		store.ClearDurable(ctx)
	case LayerCookie:
		store.ClearCookie()
	case LayerAll:
		store.ClearBoth(ctx)
	default:
		marker.SetError(ErrUnknownLayer)
		return fmt.Errorf("%w: %q", ErrUnknownLayer, layer)
	}

	s.logger.UTM().Info("Cleared persisted attribution", "visitorId", visitorID, "layer", layer)
	s.notify(visitorID, messaging.AttributionEvent{
		Kind:    "cleared",
		Layer:   layer,
		Durable: store.ReadDurable(ctx),
		Cookie:  store.ReadCookie(),
	})
	return nil
}

// RecordPageView appends the page view to the visitor's history.
func (s *AttributionService) RecordPageView(ctx context.Context, view *history.PageView) error {
	if s.pageViews == nil {
		return nil
	}
	if err := s.pageViews.Store(ctx, view); err != nil {
		return fmt.Errorf("record page view: %w", err)
	}
	return nil
}

// History returns the visitor's recent page views, newest first.
func (s *AttributionService) History(ctx context.Context, visitorID string, limit int) ([]*history.PageView, error) {
	if s.pageViews == nil {
		return []*history.PageView{}, nil
	}
	views, err := s.pageViews.FindByVisitor(ctx, visitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("load page view history: %w", err)
	}
	if views == nil {
		views = []*history.PageView{}
	}
	return views, nil
}

// PurgeHistory removes page views older than retention.
func (s *AttributionService) PurgeHistory(ctx context.Context, retention time.Duration) (int64, error) {
	if s.pageViews == nil || retention <= 0 {
		return 0, nil
	}
	return s.pageViews.PurgeOlderThan(ctx, time.Now().Add(-retention))
}

func (s *AttributionService) notify(visitorID string, event messaging.AttributionEvent) {
	if s.notifier != nil {
		s.notifier.BroadcastAttribution(visitorID, event)
	}
}
