// Package console defines debug console entries and their redacted view.
package console

import (
	"strings"
	"time"
)

// EntryType classifies a console line.
type EntryType string

const (
	TypeInfo   EntryType = "info"
	TypeInit   EntryType = "init"
	TypeAction EntryType = "action"
	TypeError  EntryType = "error"
)

// Entry is one line of the debug console. Secrets are never serialized.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EntryType `json:"type"`
	Message   string    `json:"message"`
	Payload   string    `json:"payload,omitempty"`
	Secrets   []string  `json:"-"`
}

// Redacted returns a copy with every secret longer than five characters
// replaced by its first five characters and an ellipsis.
func (e Entry) Redacted() Entry {
	out := e
	out.Secrets = nil
	for _, secret := range e.Secrets {
		runes := []rune(secret)
		if len(runes) <= 5 {
			continue
		}
		masked := string(runes[:5]) + "..."
		out.Message = strings.ReplaceAll(out.Message, secret, masked)
		out.Payload = strings.ReplaceAll(out.Payload, secret, masked)
	}
	return out
}
