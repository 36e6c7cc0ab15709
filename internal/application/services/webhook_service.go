package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/AtRiskMedia/cio-harness/internal/domain/webhook"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
)

// WebhookService fronts the webhook test data store.
type WebhookService struct {
	store       webhook.Store
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewWebhookService creates the service.
func NewWebhookService(store webhook.Store, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *WebhookService {
	return &WebhookService{store: store, logger: logger, perfTracker: perfTracker}
}

// List returns every stored key, sorted.
func (s *WebhookService) List(ctx context.Context) ([]webhook.Summary, error) {
	marker := s.perfTracker.StartOperation("webhook_list", "")
	defer marker.Complete()

	keys, err := s.store.List(ctx)
	if err != nil {
		marker.SetError(err)
		s.logger.Webhook().Error("Failed to list webhook payloads", "error", err.Error())
		return nil, err
	}
	return keys, nil
}

// Get returns one payload.
func (s *WebhookService) Get(ctx context.Context, key string) (*webhook.Entry, error) {
	marker := s.perfTracker.StartOperation("webhook_get", "")
	defer marker.Complete()

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, webhook.ErrNotFound) && !errors.Is(err, webhook.ErrKeyRequired) {
			marker.SetError(err)
			s.logger.Webhook().Error("Failed to read webhook payload", "key", key, "error", err.Error())
		}
		return nil, err
	}
	return entry, nil
}

// Put stores a payload under key.
func (s *WebhookService) Put(ctx context.Context, key string, data json.RawMessage) (*webhook.Entry, error) {
	marker := s.perfTracker.StartOperation("webhook_put", "")
	defer marker.Complete()

	entry, err := s.store.Put(ctx, key, data)
	if err != nil {
		marker.SetError(err)
		s.logger.Webhook().Warn("Webhook payload rejected", "key", key, "error", err.Error())
		return nil, err
	}
	return entry, nil
}
