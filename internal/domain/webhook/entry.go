// Package webhook defines the keyed JSON payloads of the mock webhook store.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("no payload found")
	ErrKeyRequired   = errors.New("key is required")
	ErrDataNotObject = errors.New("data must be a JSON object")
)

// Entry is one stored payload. Data is always a JSON object.
type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Summary is the listing view of an entry.
type Summary struct {
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the keyed payload store.
type Store interface {
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, data json.RawMessage) (*Entry, error)
}

// IsObject reports whether raw is a JSON object (not an array, scalar or null).
func IsObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	return obj != nil
}
