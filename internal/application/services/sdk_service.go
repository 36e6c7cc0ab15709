package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/domain/console"
	"github.com/AtRiskMedia/cio-harness/internal/domain/credentials"
	"github.com/AtRiskMedia/cio-harness/internal/domain/history"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/cdp"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/security"
)

// UserIDKey is the durable storage key holding the identified user.
const UserIDKey = "cio_harness_user_id"

var (
	ErrNotConnected  = errors.New("sdk is not connected")
	ErrEventRequired = errors.New("event name is required")
	ErrInvalidJSON   = errors.New("invalid JSON")
)

// CDPClient is the outbound tracking API.
type CDPClient interface {
	Identify(ctx context.Context, id cdp.Identity, userID string, traits, options map[string]any) (*cdp.Message, error)
	Track(ctx context.Context, id cdp.Identity, event string, properties map[string]any) (*cdp.Message, error)
	Page(ctx context.Context, id cdp.Identity, name string, properties map[string]any) (*cdp.Message, error)
}

// ClientFactory builds a CDP client for a set of credentials.
type ClientFactory func(creds *credentials.Credentials) (CDPClient, error)

// SDKStatus is the config panel view of the connection.
type SDKStatus struct {
	Connected bool      `json:"connected"`
	Region    string    `json:"region,omitempty"`
	HasSiteID bool      `json:"hasSiteId"`
	WriteKey  string    `json:"writeKey,omitempty"` // masked
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// PageResult is the outcome of a page view sent through the SDK.
type PageResult struct {
	Payload attribution.PagePayload `json:"payload"`
	Sent    bool                    `json:"sent"`
	Message *cdp.Message            `json:"message,omitempty"`
	State   *DebugState             `json:"-"`
}

// SDKService keeps the CDP connection and a visitor's identity.
type SDKService struct {
	creds       credentials.Repository
	durable     DurableProvider
	attribution *AttributionService
	console     *ConsoleService
	newClient   ClientFactory
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	mu      sync.RWMutex
	client  CDPClient
	current *credentials.Credentials
}

// NewSDKService creates the service. Call Restore to pick up stored credentials.
func NewSDKService(
	creds credentials.Repository,
	durable DurableProvider,
	attributionService *AttributionService,
	consoleService *ConsoleService,
	newClient ClientFactory,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *SDKService {
	return &SDKService{
		creds:       creds,
		durable:     durable,
		attribution: attributionService,
		console:     consoleService,
		newClient:   newClient,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Restore loads stored credentials and connects when present.
func (s *SDKService) Restore(ctx context.Context) error {
	stored, err := s.creds.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if stored == nil {
		s.logger.SDK().Info("No stored credentials, SDK disconnected")
		return nil
	}
	client, err := s.newClient(stored)
	if err != nil {
		return fmt.Errorf("restore client: %w", err)
	}
	s.mu.Lock()
	s.client, s.current = client, stored
	s.mu.Unlock()
	s.logger.SDK().Info("Restored stored credentials", "region", stored.Region)
	return nil
}

// Connect validates and stores credentials, then connects.
func (s *SDKService) Connect(ctx context.Context, writeKey, region, siteID string) (*SDKStatus, error) {
	marker := s.perfTracker.StartOperation("sdk_connect", "")
	defer marker.Complete()

	creds := &credentials.Credentials{
		WriteKey:  strings.TrimSpace(writeKey),
		Region:    cdp.NormalizeRegion(region),
		SiteID:    strings.TrimSpace(siteID),
		UpdatedAt: time.Now().UTC(),
	}

	siteMsg := ""
	if creds.SiteID != "" {
		siteMsg = " with Site ID: " + creds.SiteID
	}
	s.console.Add(console.TypeInfo,
		fmt.Sprintf("Initializing SDK with key: %s (%s)%s...", creds.WriteKey, strings.ToUpper(creds.Region), siteMsg),
		nil, creds.WriteKey, creds.SiteID)

	client, err := s.newClient(creds)
	if err != nil {
		marker.SetError(err)
		s.console.Add(console.TypeError, "Failed to initialize SDK", err.Error())
		return nil, err
	}
	if err := s.creds.Save(ctx, creds); err != nil {
		marker.SetError(err)
		s.console.Add(console.TypeError, "Failed to initialize SDK", err.Error())
		return nil, fmt.Errorf("save credentials: %w", err)
	}

	s.mu.Lock()
	s.client, s.current = client, creds
	s.mu.Unlock()

	initMsg := "SDK initialized successfully"
	if creds.SiteID != "" {
		initMsg += " (In-App Messaging enabled)"
	}
	s.console.Add(console.TypeInit, initMsg, nil)
	s.logger.SDK().Info("SDK connected", "region", creds.Region, "writeKey", security.MaskSecret(creds.WriteKey))
	return s.Status(), nil
}

// Disconnect forgets the credentials and resets the visitor's identity.
func (s *SDKService) Disconnect(ctx context.Context, visitorID string) error {
	if err := s.creds.Clear(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	if visitorID != "" {
		if err := s.durable.ForVisitor(visitorID).RemoveItem(ctx, UserIDKey); err != nil {
			s.logger.SDK().Warn("Could not reset identity on disconnect", "visitorId", visitorID, "error", err.Error())
		}
	}
	s.mu.Lock()
	s.client, s.current = nil, nil
	s.mu.Unlock()

	s.console.Add(console.TypeInfo, "SDK disconnected and reset", nil)
	s.logger.SDK().Info("SDK disconnected")
	return nil
}

// Status reports the connection without exposing the write key.
func (s *SDKService) Status() *SDKStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return &SDKStatus{}
	}
	return &SDKStatus{
		Connected: true,
		Region:    s.current.Region,
		HasSiteID: s.current.SiteID != "",
		WriteKey:  security.MaskSecret(s.current.WriteKey),
		UpdatedAt: s.current.UpdatedAt,
	}
}

func (s *SDKService) connected() (CDPClient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.client != nil
}

// UserID returns the identified user for a visitor, or "".
func (s *SDKService) UserID(ctx context.Context, visitorID string) string {
	value, ok, err := s.durable.ForVisitor(visitorID).GetItem(ctx, UserIDKey)
	if err != nil {
		s.logger.SDK().Warn("Could not read stored user id", "visitorId", visitorID, "error", err.Error())
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

func (s *SDKService) identity(ctx context.Context, visitorID string) cdp.Identity {
	return cdp.Identity{AnonymousID: visitorID, UserID: s.UserID(ctx, visitorID)}
}

// Identify ties the visitor to userID. An empty userID keeps the current user.
func (s *SDKService) Identify(ctx context.Context, visitorID, userID string, traits, options map[string]any) (*cdp.Message, error) {
	marker := s.perfTracker.StartOperation("sdk_identify", visitorID)
	defer marker.Complete()

	client, ok := s.connected()
	if !ok {
		marker.SetError(ErrNotConnected)
		return nil, ErrNotConnected
	}

	label := userID
	if label == "" {
		if email, ok := traits["email"].(string); ok {
			label = email
		}
	}
	s.console.Add(console.TypeAction, "Identifying user: "+label,
		map[string]any{"userId": userID, "traits": traits, "options": options})

	msg, err := client.Identify(ctx, s.identity(ctx, visitorID), userID, traits, options)
	if err != nil {
		marker.SetError(err)
		s.console.Add(console.TypeError, "Identify failed", err.Error())
		return nil, err
	}
	if msg.UserID != "" {
		if err := s.durable.ForVisitor(visitorID).SetItem(ctx, UserIDKey, msg.UserID); err != nil {
			s.logger.SDK().Warn("Could not store user id", "visitorId", visitorID, "error", err.Error())
		}
	}
	return msg, nil
}

// IdentifyFromJSON identifies from a raw JSON object: id or userId is the user,
// context becomes options.context and every other key is a trait.
func (s *SDKService) IdentifyFromJSON(ctx context.Context, visitorID string, raw []byte) (*cdp.Message, error) {
	userID, traits, options, err := ParseIdentifyJSON(raw)
	if err != nil {
		s.console.Add(console.TypeError, "Invalid JSON: "+err.Error(), nil)
		return nil, err
	}
	return s.Identify(ctx, visitorID, userID, traits, options)
}

// ParseIdentifyJSON splits an identify JSON object into user ID, traits and options.
func ParseIdentifyJSON(raw []byte) (string, map[string]any, map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", nil, nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if data == nil {
		return "", nil, nil, fmt.Errorf("%w: expected an object", ErrInvalidJSON)
	}

	userID := stringID(data["id"])
	if userID == "" {
		userID = stringID(data["userId"])
	}
	var options map[string]any
	if ctxValue, ok := data["context"]; ok && ctxValue != nil {
		options = map[string]any{"context": ctxValue}
	}

	traits := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case "id", "userId", "context":
			continue
		}
		traits[k] = v
	}
	return userID, traits, options, nil
}

func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%v", id)
	}
	return ""
}

// Track records an event for the visitor.
func (s *SDKService) Track(ctx context.Context, visitorID, event string, properties map[string]any) (*cdp.Message, error) {
	marker := s.perfTracker.StartOperation("sdk_track", visitorID)
	defer marker.Complete()

	event = strings.TrimSpace(event)
	if event == "" {
		marker.SetError(ErrEventRequired)
		return nil, ErrEventRequired
	}
	client, ok := s.connected()
	if !ok {
		marker.SetError(ErrNotConnected)
		return nil, ErrNotConnected
	}

	s.console.Add(console.TypeAction, "Tracking event: "+event, properties)
	msg, err := client.Track(ctx, s.identity(ctx, visitorID), event, properties)
	if err != nil {
		marker.SetError(err)
		s.console.Add(console.TypeError, "Track failed", err.Error())
		return nil, err
	}
	return msg, nil
}

// Page runs a page view through the attribution store and sends it when
// connected. The page view is recorded in history either way.
func (s *SDKService) Page(ctx context.Context, visitorID string, jar attribution.CookieJar, pageURL *url.URL, name string) (*PageResult, error) {
	marker := s.perfTracker.StartOperation("sdk_page", visitorID)
	defer marker.Complete()

	state := s.attribution.PageView(ctx, visitorID, jar, pageURL)
	result := &PageResult{Payload: state.PagePayload, State: state}

	payloadJSON, _ := json.Marshal(state.PagePayload)
	pageCall := fmt.Sprintf("_cio.page(%q, %s)", name, payloadJSON)

	client, ok := s.connected()
	var sendErr error
	if ok {
		s.console.Add(console.TypeAction, pageCall, nil)
		result.Message, sendErr = client.Page(ctx, s.identity(ctx, visitorID), name, state.PagePayload)
		result.Sent = sendErr == nil
		if sendErr != nil {
			marker.SetError(sendErr)
			s.console.Add(console.TypeError, "Page call failed", sendErr.Error())
		}
	} else {
		s.console.Add(console.TypeInfo, pageCall+" (dry run, SDK not connected)", nil)
	}

	view := &history.PageView{
		VisitorID:   visitorID,
		URL:         state.URL,
		Name:        name,
		UTMEligible: state.HasUTMs,
		Payload:     state.PagePayload,
		Sent:        result.Sent,
	}
	if err := s.attribution.RecordPageView(ctx, view); err != nil {
		s.logger.SDK().Warn("Page view not recorded", "visitorId", visitorID, "error", err.Error())
	}
	return result, sendErr
}

// Reset forgets the identified user for the visitor. The anonymous ID is kept.
func (s *SDKService) Reset(ctx context.Context, visitorID string) error {
	if err := s.durable.ForVisitor(visitorID).RemoveItem(ctx, UserIDKey); err != nil {
		return fmt.Errorf("reset identity: %w", err)
	}
	s.console.Add(console.TypeAction, "Identity reset", nil)
	s.logger.SDK().Info("Identity reset", "visitorId", visitorID)
	return nil
}

// NewCDPClientFactory returns a factory building real CDP clients.
func NewCDPClientFactory(endpoint string, timeout time.Duration, maxTries uint, logger *logging.ChanneledLogger) ClientFactory {
	return func(creds *credentials.Credentials) (CDPClient, error) {
		client, err := cdp.NewClient(cdp.Config{
			WriteKey: creds.WriteKey,
			Region:   creds.Region,
			Endpoint: endpoint,
			Timeout:  timeout,
			MaxTries: maxTries,
			Logger:   logger.SDK(),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
