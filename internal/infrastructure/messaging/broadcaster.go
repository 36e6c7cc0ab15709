// Package messaging provides the live update channels of the harness pages.
package messaging

import (
	"encoding/json"
	"sync"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
)

// AttributionEvent tells open UTM test tabs that a visitor's stored attribution changed.
type AttributionEvent struct {
	Kind    string             `json:"kind"` // synced, cleared
	Layer   string             `json:"layer,omitempty"`
	Durable attribution.Record `json:"durable"`
	Cookie  attribution.Record `json:"cookie"`
}

// SSEBroadcaster manages visitor-scoped SSE connections.
type SSEBroadcaster struct {
	visitors map[string][]chan string // visitorId -> []channels
	mu       sync.Mutex
	logger   *logging.ChanneledLogger
}

// NewSSEBroadcaster creates a broadcaster.
func NewSSEBroadcaster(logger *logging.ChanneledLogger) *SSEBroadcaster {
	return &SSEBroadcaster{
		visitors: make(map[string][]chan string),
		logger:   logger,
	}
}

// AddClient registers a new SSE client for a visitor.
func (b *SSEBroadcaster) AddClient(visitorID string) chan string {
	ch := make(chan string, 10)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.visitors[visitorID] = append(b.visitors[visitorID], ch)
	b.logger.UTM().Debug("SSE client registered", "visitorId", visitorID)
	return ch
}

// RemoveClient removes an SSE client.
func (b *SSEBroadcaster) RemoveClient(ch chan string, visitorID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients := b.visitors[visitorID]
	remaining := make([]chan string, 0, len(clients))
	for _, client := range clients {
		if client != ch {
			remaining = append(remaining, client)
		}
	}
	if len(remaining) == 0 {
		delete(b.visitors, visitorID)
	} else {
		b.visitors[visitorID] = remaining
	}
	b.logger.UTM().Debug("SSE client unregistered", "visitorId", visitorID)
}

// ConnectionCount returns how many streams a visitor has open.
func (b *SSEBroadcaster) ConnectionCount(visitorID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.visitors[visitorID])
}

// BroadcastAttribution sends an attribution event to every stream of a visitor.
func (b *SSEBroadcaster) BroadcastAttribution(visitorID string, event AttributionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.UTM().Error("Error marshaling attribution event", "error", err.Error())
		return
	}
	message := "event: attribution\ndata: " + string(data) + "\n\n"

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.visitors[visitorID] {
		select {
		case ch <- message:
		default:
			b.logger.UTM().Warn("SSE channel full, message dropped", "visitorId", visitorID)
		}
	}
}
