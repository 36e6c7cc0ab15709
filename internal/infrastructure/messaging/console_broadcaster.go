package messaging

import (
	"context"
	"encoding/json"

	"github.com/AtRiskMedia/cio-harness/internal/domain/console"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/gorilla/websocket"
)

// ConsoleClient represents a single connected debug console tab.
type ConsoleClient struct {
	Conn   *websocket.Conn
	Send   chan []byte
	Redact bool
}

// NewConsoleClient creates a client with a buffered send queue.
func NewConsoleClient(conn *websocket.Conn, redact bool) *ConsoleClient {
	return &ConsoleClient{Conn: conn, Send: make(chan []byte, 64), Redact: redact}
}

// ConsoleBroadcaster pushes new console entries to every connected websocket client.
type ConsoleBroadcaster struct {
	clients    map[*ConsoleClient]bool
	register   chan *ConsoleClient
	unregister chan *ConsoleClient
	broadcast  chan console.Entry
	done       chan struct{}
	logger     *logging.ChanneledLogger
}

// NewConsoleBroadcaster creates a broadcaster. Run must be started before use.
func NewConsoleBroadcaster(logger *logging.ChanneledLogger) *ConsoleBroadcaster {
	return &ConsoleBroadcaster{
		clients:    make(map[*ConsoleClient]bool),
		register:   make(chan *ConsoleClient),
		unregister: make(chan *ConsoleClient),
		broadcast:  make(chan console.Entry, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the broadcaster's main loop and returns when ctx is done. Every
// client's Send channel is closed on exit.
func (b *ConsoleBroadcaster) Run(ctx context.Context) error {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Send)
			}
			b.logger.Console().Debug("Console broadcaster stopped")
			return nil

		case client := <-b.register:
			b.clients[client] = true
			b.logger.Console().Debug("Console client registered", "clients", len(b.clients))

		case client := <-b.unregister:
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			b.logger.Console().Debug("Console client unregistered", "clients", len(b.clients))

		case entry := <-b.broadcast:
			b.distribute(entry)
		}
	}
}

func (b *ConsoleBroadcaster) distribute(entry console.Entry) {
	plain, err := json.Marshal(entry)
	if err != nil {
		b.logger.Console().Error("Error marshaling console entry", "error", err.Error())
		return
	}
	redacted, err := json.Marshal(entry.Redacted())
	if err != nil {
		b.logger.Console().Error("Error marshaling console entry", "error", err.Error())
		return
	}

	for client := range b.clients {
		message := plain
		if client.Redact {
			message = redacted
		}
		select {
		case client.Send <- message:
		default:
			b.logger.Console().Warn("Console client queue full, entry dropped", "entryId", entry.ID)
		}
	}
}

// Register queues a client for registration. It returns false once the loop has stopped.
func (b *ConsoleBroadcaster) Register(client *ConsoleClient) bool {
	select {
	case b.register <- client:
		return true
	case <-b.done:
		return false
	}
}

// Unregister queues a client for unregistration.
func (b *ConsoleBroadcaster) Unregister(client *ConsoleClient) {
	select {
	case b.unregister <- client:
	case <-b.done:
	}
}

// Publish queues an entry without blocking.
func (b *ConsoleBroadcaster) Publish(entry console.Entry) {
	select {
	case b.broadcast <- entry:
	default:
		b.logger.Console().Warn("Console broadcast queue full, entry dropped", "entryId", entry.ID)
	}
}
