// Package webhookstore keeps webhook test payloads in a single JSON file.
package webhookstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/webhook"
	"github.com/spf13/afero"
)

type record struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// FileStore is a webhook.Store backed by one JSON object on disk. Writes are
// serialized within the process; concurrent processes are not coordinated.
type FileStore struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewFileStore creates a store at path on fs.
func NewFileStore(fs afero.Fs, path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileStore{fs: fs, path: path, logger: logger, now: time.Now}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) ensure() error {
	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	if exists {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, []byte("{}"), 0644); err != nil {
		return fmt.Errorf("create store file: %w", err)
	}
	s.logger.Info("Created webhook store", "path", s.path)
	return nil
}

// load reads the file as raw entries. Only a file that is not a JSON object
// reads as empty; entries of an unexpected shape are kept untouched.
func (s *FileStore) load() (map[string]json.RawMessage, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	var store map[string]json.RawMessage
	if err := json.Unmarshal(raw, &store); err != nil || store == nil {
		msg := "not a JSON object"
		if err != nil {
			msg = err.Error()
		}
		s.logger.Warn("Webhook store is malformed, treating as empty", "path", s.path, "error", msg)
		return make(map[string]json.RawMessage), nil
	}
	return store, nil
}

// decode parses one entry. ok is false for entries List and Get must skip.
func (s *FileStore) decode(key string, raw json.RawMessage) (record, bool) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Data == nil {
		s.logger.Warn("Skipping malformed webhook entry", "key", key)
		return record{}, false
	}
	return rec, true
}

func (s *FileStore) save(store map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// List returns every key with its update time, sorted by key.
func (s *FileStore) List(_ context.Context) ([]webhook.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]webhook.Summary, 0, len(store))
	for key, raw := range store {
		if rec, ok := s.decode(key, raw); ok {
			keys = append(keys, webhook.Summary{Key: key, UpdatedAt: rec.UpdatedAt})
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
	return keys, nil
}

// Get returns the payload under key.
func (s *FileStore) Get(_ context.Context, key string) (*webhook.Entry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, webhook.ErrKeyRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load()
	if err != nil {
		return nil, err
	}
	raw, ok := store[key]
	if !ok {
		return nil, fmt.Errorf("%w for key %q", webhook.ErrNotFound, key)
	}
	rec, ok := s.decode(key, raw)
	if !ok {
		return nil, fmt.Errorf("%w for key %q", webhook.ErrNotFound, key)
	}
	return &webhook.Entry{Key: key, Data: rec.Data, UpdatedAt: rec.UpdatedAt}, nil
}

// Put stores data under key, replacing any previous payload.
func (s *FileStore) Put(_ context.Context, key string, data json.RawMessage) (*webhook.Entry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, webhook.ErrKeyRequired
	}
	if !webhook.IsObject(data) {
		return nil, webhook.ErrDataNotObject
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store, err := s.load()
	if err != nil {
		return nil, err
	}
	rec := record{Data: data, UpdatedAt: s.now().UTC()}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	store[key] = encoded
	if err := s.save(store); err != nil {
		return nil, err
	}
	s.logger.Info("Stored webhook payload", "key", key, "bytes", len(data))
	return &webhook.Entry{Key: key, Data: data, UpdatedAt: rec.UpdatedAt}, nil
}

var _ webhook.Store = (*FileStore)(nil)

// NewOsFileStore is a convenience for the real filesystem.
func NewOsFileStore(path string, logger *slog.Logger) *FileStore {
	return NewFileStore(afero.NewOsFs(), path, logger)
}
