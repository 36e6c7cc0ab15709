package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/AtRiskMedia/cio-harness/internal/application/services"
	"github.com/AtRiskMedia/cio-harness/internal/domain/webhook"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// WebhookHandlers serves the webhook test data API.
type WebhookHandlers struct {
	webhookService *services.WebhookService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewWebhookHandlers creates webhook handlers with injected dependencies
func NewWebhookHandlers(webhookService *services.WebhookService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *WebhookHandlers {
	return &WebhookHandlers{
		webhookService: webhookService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// GetWebhookData handles GET /api/webhook-test-data. With a key (query) it
// returns that payload, otherwise the key listing.
func (h *WebhookHandlers) GetWebhookData(c *gin.Context) {
	if _, hasKey := c.GetQuery("key"); hasKey {
		h.getByKey(c, c.Query("key"))
		return
	}

	marker := h.perfTracker.StartOperation("get_webhook_keys_request", "")
	defer marker.Complete()

	keys, err := h.webhookService.List(c.Request.Context())
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// GetWebhookDataByKey handles GET /api/webhook-test-data/:key
func (h *WebhookHandlers) GetWebhookDataByKey(c *gin.Context) {
	h.getByKey(c, c.Param("key"))
}

func (h *WebhookHandlers) getByKey(c *gin.Context, key string) {
	marker := h.perfTracker.StartOperation("get_webhook_payload_request", "")
	defer marker.Complete()

	key = strings.TrimSpace(key)
	entry, err := h.webhookService.Get(c.Request.Context(), key)
	switch {
	case errors.Is(err, webhook.ErrKeyRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A key is required"})
	case errors.Is(err, webhook.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": `No payload found for key "` + key + `"`})
	case err != nil:
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, entry)
	}
}

// PostWebhookData handles POST /api/webhook-test-data with body {key, data}.
func (h *WebhookHandlers) PostWebhookData(c *gin.Context) {
	marker := h.perfTracker.StartOperation("post_webhook_payload_request", "")
	defer marker.Complete()

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid JSON body"})
		return
	}

	var body map[string]json.RawMessage
	_ = json.Unmarshal(raw, &body) // non-object bodies leave body nil

	var key string
	if rawKey, ok := body["key"]; ok {
		_ = json.Unmarshal(rawKey, &key) // non-string keys stay empty
	}

	entry, err := h.webhookService.Put(c.Request.Context(), key, body["data"])
	switch {
	case errors.Is(err, webhook.ErrKeyRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": `Body must include a non-empty "key"`})
	case errors.Is(err, webhook.ErrDataNotObject):
		c.JSON(http.StatusBadRequest, gin.H{"error": `Body must include "data" as a JSON object`})
	case err != nil:
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, entry)
	}
}

// MethodNotAllowed answers every other method on the webhook routes.
func (h *WebhookHandlers) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
