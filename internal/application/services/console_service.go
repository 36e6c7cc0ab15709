package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/console"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/security"
)

// ConsoleService keeps the most recent debug console entries in a ring buffer.
type ConsoleService struct {
	mu        sync.RWMutex
	entries   []console.Entry
	next      int
	full      bool
	publisher messaging.ConsolePublisher
	logger    *logging.ChanneledLogger
	now       func() time.Time
}

// NewConsoleService creates a console holding up to maxEntries entries.
func NewConsoleService(maxEntries int, publisher messaging.ConsolePublisher, logger *logging.ChanneledLogger) *ConsoleService {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &ConsoleService{
		entries:   make([]console.Entry, maxEntries),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Add appends an entry. payload is rendered as indented JSON unless it is already
// a string; secrets are masked in the redacted view.
func (s *ConsoleService) Add(entryType console.EntryType, message string, payload any, secrets ...string) console.Entry {
	entry := console.Entry{
		ID:        security.GenerateULID(),
		Timestamp: s.now().UTC(),
		Type:      entryType,
		Message:   message,
		Payload:   renderPayload(payload),
		Secrets:   nonEmpty(secrets),
	}

	s.mu.Lock()
	s.entries[s.next] = entry
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()

	s.logger.Console().Debug("Console entry added", "type", string(entryType), "message", entry.Redacted().Message)
	if s.publisher != nil {
		s.publisher.Publish(entry)
	}
	return entry
}

// Entries returns the buffered entries, oldest first.
func (s *ConsoleService) Entries(redact bool) []console.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ordered []console.Entry
	if s.full {
		ordered = append(ordered, s.entries[s.next:]...)
	}
	ordered = append(ordered, s.entries[:s.next]...)

	out := make([]console.Entry, len(ordered))
	for i, entry := range ordered {
		if redact {
			entry = entry.Redacted()
		}
		out[i] = entry
	}
	return out
}

// Clear empties the buffer.
func (s *ConsoleService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]console.Entry, len(s.entries))
	s.next = 0
	s.full = false
}

func renderPayload(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		return p
	case json.RawMessage:
		return string(p)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
