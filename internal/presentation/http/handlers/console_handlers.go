package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/application/services"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ConsoleHandlers serves the debug console.
type ConsoleHandlers struct {
	consoleService *services.ConsoleService
	broadcaster    *messaging.ConsoleBroadcaster
	upgrader       websocket.Upgrader
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewConsoleHandlers creates console handlers. allowedOrigins gates websocket upgrades.
func NewConsoleHandlers(
	consoleService *services.ConsoleService,
	broadcaster *messaging.ConsoleBroadcaster,
	allowedOrigins []string,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *ConsoleHandlers {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &ConsoleHandlers{
		consoleService: consoleService,
		broadcaster:    broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin] || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetEntries handles GET /api/v1/console?redact=true
func (h *ConsoleHandlers) GetEntries(c *gin.Context) {
	redact := c.DefaultQuery("redact", "true") != "false"
	c.JSON(http.StatusOK, gin.H{"entries": h.consoleService.Entries(redact), "redacted": redact})
}

// DeleteEntries handles DELETE /api/v1/console
func (h *ConsoleHandlers) DeleteEntries(c *gin.Context) {
	h.consoleService.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Stream handles GET /api/v1/console/ws, pushing new entries over a websocket.
func (h *ConsoleHandlers) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Console().Warn("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := messaging.NewConsoleClient(conn, c.DefaultQuery("redact", "true") != "false")
	if !h.broadcaster.Register(client) {
		conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

// readPump discards client messages and unregisters the client when the socket closes.
func (h *ConsoleHandlers) readPump(client *messaging.ConsoleClient) {
	defer func() {
		h.broadcaster.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ConsoleHandlers) writePump(client *messaging.ConsoleClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
