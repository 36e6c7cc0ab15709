// Package cdp is an HTTP client for the Customer.io Pipelines tracking API.
package cdp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const (
	RegionUS = "us"
	RegionEU = "eu"

	LibraryName    = "cio-harness"
	LibraryVersion = "1.0.0"
)

var (
	ErrInvalidRegion    = errors.New("region must be us or eu")
	ErrWriteKeyRequired = errors.New("write key is required")
)

// BaseURL returns the API host for a region. An empty region means us.
func BaseURL(region string) (string, error) {
	switch NormalizeRegion(region) {
	case RegionUS:
		return "https://cdp.customer.io", nil
	case RegionEU:
		return "https://cdp-eu.customer.io", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
}

// NormalizeRegion lowercases the region and defaults it to us.
func NormalizeRegion(region string) string {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		return RegionUS
	}
	return region
}

// Config configures a Client.
type Config struct {
	WriteKey string
	Region   string
	// Endpoint overrides the regional base URL.
	Endpoint        string
	Timeout         time.Duration
	MaxTries        uint
	InitialInterval time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
	Now             func() time.Time
}

// Client sends identify, track and page calls.
type Client struct {
	baseURL         string
	writeKey        string
	httpClient      *http.Client
	maxTries        uint
	initialInterval time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewClient validates the config and creates a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.WriteKey) == "" {
		return nil, ErrWriteKeyRequired
	}
	base, err := BaseURL(cfg.Region)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint != "" {
		base = strings.TrimRight(cfg.Endpoint, "/")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:         base,
		writeKey:        cfg.WriteKey,
		httpClient:      httpClient,
		maxTries:        maxTries,
		initialInterval: cfg.InitialInterval,
		logger:          logger,
		now:             now,
	}, nil
}

// Identity is who a call is attributed to.
type Identity struct {
	AnonymousID string
	UserID      string
}

// Reset forgets the identified user and keeps the anonymous ID.
func (i Identity) Reset() Identity {
	return Identity{AnonymousID: i.AnonymousID}
}

// Message is the JSON body of a tracking call.
type Message struct {
	Type        string         `json:"type"`
	MessageID   string         `json:"messageId"`
	Timestamp   time.Time      `json:"timestamp"`
	AnonymousID string         `json:"anonymousId,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	Event       string         `json:"event,omitempty"`
	Name        string         `json:"name,omitempty"`
	Traits      map[string]any `json:"traits,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Context     map[string]any `json:"context"`
}

// Identify ties the identity to userID with traits. options["context"], when an
// object, is merged into the message context.
func (c *Client) Identify(ctx context.Context, id Identity, userID string, traits, options map[string]any) (*Message, error) {
	if userID != "" {
		id.UserID = userID
	}
	msg := c.newMessage("identify", id)
	msg.Traits = traits
	if extra, ok := options["context"].(map[string]any); ok {
		for k, v := range extra {
			msg.Context[k] = v
		}
	}
	return msg, c.send(ctx, msg)
}

// Track records a named event.
func (c *Client) Track(ctx context.Context, id Identity, event string, properties map[string]any) (*Message, error) {
	msg := c.newMessage("track", id)
	msg.Event = event
	msg.Properties = properties
	return msg, c.send(ctx, msg)
}

// Page records a page view.
func (c *Client) Page(ctx context.Context, id Identity, name string, properties map[string]any) (*Message, error) {
	msg := c.newMessage("page", id)
	msg.Name = name
	msg.Properties = properties
	if pageURL, ok := properties["url"].(string); ok {
		msg.Context["page"] = map[string]any{"url": pageURL}
	}
	return msg, c.send(ctx, msg)
}

func (c *Client) newMessage(kind string, id Identity) *Message {
	return &Message{
		Type:        kind,
		MessageID:   uuid.NewString(),
		Timestamp:   c.now().UTC(),
		AnonymousID: id.AnonymousID,
		UserID:      id.UserID,
		Context: map[string]any{
			"library": map[string]any{"name": LibraryName, "version": LibraryVersion},
		},
	}
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cdp responded %d: %s", e.StatusCode, e.Body)
}

func (c *Client) send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s call: %w", msg.Type, err)
	}
	endpoint := c.baseURL + "/v1/" + msg.Type

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := c.post(ctx, endpoint, body)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !retryable(statusErr.StatusCode) {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			c.logger.Warn("CDP call attempt failed",
				"type", msg.Type, "messageId", msg.MessageID, "attempt", attempt, "error", err.Error())
		}
		return struct{}{}, err
	}

	policy := backoff.NewExponentialBackOff()
	if c.initialInterval > 0 {
		policy.InitialInterval = c.initialInterval
	}

	start := time.Now()
	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		c.logger.Error("CDP call failed",
			"type", msg.Type, "messageId", msg.MessageID, "attempts", attempt, "error", err.Error())
		return fmt.Errorf("%s call: %w", msg.Type, err)
	}

	c.logger.Info("CDP call delivered",
		"type", msg.Type, "messageId", msg.MessageID, "attempts", attempt, "duration", time.Since(start))
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.writeKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
