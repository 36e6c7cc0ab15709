package logging

import (
	"encoding/json"
	"log/slog"
	"time"
)

// SSEWriter is an io.Writer that receives JSON log lines and forwards them to a
// LogBroadcaster.
type SSEWriter struct {
	broadcaster *LogBroadcaster
}

// NewSSEWriter creates a new writer that sends log data to the broadcaster.
func NewSSEWriter(broadcaster *LogBroadcaster) *SSEWriter {
	return &SSEWriter{broadcaster: broadcaster}
}

// Write parses one JSON log line and submits it. It never fails so that logging
// is never interrupted by the stream.
func (w *SSEWriter) Write(p []byte) (int, error) {
	var rawLog map[string]any
	if err := json.Unmarshal(p, &rawLog); err != nil {
		w.broadcaster.SubmitLog(LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     slog.LevelError.String(),
			Channel:   string(ChannelSystem),
			Message:   "sse_writer: failed to parse incoming log message",
		})
		return len(p), nil
	}

	w.broadcaster.SubmitLog(LogEntry{
		Timestamp: getString(rawLog, "time"),
		Level:     getString(rawLog, "level"),
		Channel:   getString(rawLog, "channel"),
		Message:   getString(rawLog, "msg"),
		VisitorID: getString(rawLog, "visitorId"),
	})
	return len(p), nil
}

func getString(data map[string]any, key string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return ""
}
