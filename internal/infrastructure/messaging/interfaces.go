package messaging

import "github.com/AtRiskMedia/cio-harness/internal/domain/console"

// AttributionNotifier is told whenever a visitor's stored attribution changes.
type AttributionNotifier interface {
	BroadcastAttribution(visitorID string, event AttributionEvent)
}

// ConsolePublisher receives new debug console entries.
type ConsolePublisher interface {
	Publish(entry console.Entry)
}
