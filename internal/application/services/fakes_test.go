package services

import (
	"context"
	"net/http"
	"sync"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/domain/credentials"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/cdp"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/storage"
)

type memoryProvider struct {
	mu     sync.Mutex
	stores map[string]*storage.MemoryDurableStore
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{stores: make(map[string]*storage.MemoryDurableStore)}
}

func (p *memoryProvider) ForVisitor(visitorID string) attribution.DurableKeyValueStore {
	return p.store(visitorID)
}

func (p *memoryProvider) store(visitorID string) *storage.MemoryDurableStore {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stores[visitorID]
	if !ok {
		s = storage.NewMemoryDurableStore()
		p.stores[visitorID] = s
	}
	return s
}

type memoryCredentials struct {
	stored  *credentials.Credentials
	saveErr error
}

func (m *memoryCredentials) Load(context.Context) (*credentials.Credentials, error) {
	if m.stored == nil {
		return nil, nil
	}
	c := *m.stored
	return &c, nil
}

func (m *memoryCredentials) Save(_ context.Context, creds *credentials.Credentials) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	c := *creds
	m.stored = &c
	return nil
}

func (m *memoryCredentials) Clear(context.Context) error {
	m.stored = nil
	return nil
}

type call struct {
	kind       string
	identity   cdp.Identity
	userID     string
	name       string
	traits     map[string]any
	properties map[string]any
}

type fakeClient struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeClient) record(c call, msgType string) (*cdp.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.err != nil {
		return nil, f.err
	}
	userID := c.identity.UserID
	if c.userID != "" {
		userID = c.userID
	}
	return &cdp.Message{Type: msgType, MessageID: "m", AnonymousID: c.identity.AnonymousID, UserID: userID,
		Event: c.name, Traits: c.traits, Properties: c.properties}, nil
}

func (f *fakeClient) Identify(_ context.Context, id cdp.Identity, userID string, traits, _ map[string]any) (*cdp.Message, error) {
	return f.record(call{kind: "identify", identity: id, userID: userID, traits: traits}, "identify")
}

func (f *fakeClient) Track(_ context.Context, id cdp.Identity, event string, props map[string]any) (*cdp.Message, error) {
	return f.record(call{kind: "track", identity: id, name: event, properties: props}, "track")
}

func (f *fakeClient) Page(_ context.Context, id cdp.Identity, name string, props map[string]any) (*cdp.Message, error) {
	return f.record(call{kind: "page", identity: id, name: name, properties: props}, "page")
}

func (f *fakeClient) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []messaging.AttributionEvent
}

func (r *recordingNotifier) BroadcastAttribution(_ string, event messaging.AttributionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// cookieJar is a jar without expiry handling, enough for one request.
type cookieJar map[string]*http.Cookie

func (j cookieJar) Cookie(name string) (*http.Cookie, error) {
	if c, ok := j[name]; ok {
		return c, nil
	}
	return nil, http.ErrNoCookie
}

func (j cookieJar) SetCookie(c *http.Cookie) {
	if c.MaxAge < 0 {
		delete(j, c.Name)
		return
	}
	j[c.Name] = c
}

type harness struct {
	durable     *memoryProvider
	creds       *memoryCredentials
	client      *fakeClient
	notifier    *recordingNotifier
	attribution *AttributionService
	console     *ConsoleService
	sdk         *SDKService
}

func newHarness() *harness {
	logger := logging.NewDiscardLogger()
	perf := performance.NewTracker(nil)
	h := &harness{
		durable:  newMemoryProvider(),
		creds:    &memoryCredentials{},
		client:   &fakeClient{},
		notifier: &recordingNotifier{},
	}
	h.attribution = NewAttributionService(h.durable, nil, h.notifier, logger, perf)
	h.console = NewConsoleService(50, nil, logger)
	factory := func(c *credentials.Credentials) (CDPClient, error) {
		if _, err := cdp.BaseURL(c.Region); err != nil {
			return nil, err
		}
		if c.WriteKey == "" {
			return nil, cdp.ErrWriteKeyRequired
		}
		return h.client, nil
	}
	h.sdk = NewSDKService(h.creds, h.durable, h.attribution, h.console, factory, logger, perf)
	return h
}
