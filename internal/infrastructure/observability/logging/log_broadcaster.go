package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LogEntry represents a single log entry to be sent to the client.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	VisitorID string `json:"visitorId,omitempty"`
}

// Client represents a single connected client (a browser tab) listening for logs.
type Client struct {
	id      string
	Channel chan []byte
	filters AppliedFilters
}

// AppliedFilters defines the filtering criteria for a client.
type AppliedFilters struct {
	Channel Channel    // "all" matches every channel
	Level   slog.Level // minimum level
}

// LogBroadcaster manages clients and broadcasts log messages.
type LogBroadcaster struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan LogEntry
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

// NewLogBroadcaster creates a broadcaster and starts its distribution loop.
func NewLogBroadcaster() *LogBroadcaster {
	b := &LogBroadcaster{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan LogEntry, 1000),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go b.run()
	return b
}

// run is the central loop that owns the client set.
func (b *LogBroadcaster) run() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Channel)
			}
			return
		case client := <-b.register:
			b.clients[client] = true
		case client := <-b.unregister:
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Channel)
			}
		case entry := <-b.broadcast:
			b.distribute(entry)
		}
	}
}

// distribute sends a log entry to all clients whose filters match.
func (b *LogBroadcaster) distribute(entry LogEntry) {
	message, err := json.Marshal(entry)
	if err != nil {
		return
	}
	level := ParseLevel(entry.Level)

	for client := range b.clients {
		channelMatch := client.filters.Channel == "all" || client.filters.Channel == Channel(entry.Channel)
		if !channelMatch || level < client.filters.Level {
			continue
		}
		select {
		case client.Channel <- message:
		default:
			// Slow client: drop rather than block the loop.
		}
	}
}

// SubmitLog queues an entry without blocking; entries are dropped when the queue is full.
func (b *LogBroadcaster) SubmitLog(entry LogEntry) {
	select {
	case b.broadcast <- entry:
	default:
	}
}

// NewClient creates a new client for the broadcaster.
func (b *LogBroadcaster) NewClient(filters AppliedFilters) *Client {
	return &Client{
		id:      fmt.Sprintf("%d", time.Now().UnixNano()),
		Channel: make(chan []byte, 100),
		filters: filters,
	}
}

// RegisterClient adds a client. It returns false once the broadcaster is stopped.
func (b *LogBroadcaster) RegisterClient(client *Client) bool {
	select {
	case b.register <- client:
		return true
	case <-b.done:
		return false
	}
}

// UnregisterClient removes a client and closes its channel.
func (b *LogBroadcaster) UnregisterClient(client *Client) {
	select {
	case b.unregister <- client:
	case <-b.done:
	}
}

// Shutdown stops the loop, closes every client channel and waits for the loop to exit.
func (b *LogBroadcaster) Shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })
	<-b.done
}
