package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DurableKey is the storage key of the persisted record. Renaming it breaks
	// continuity for returning visitors.
	DurableKey = "cio_utm_attribution"

	// CookieName is the name of the mirror cookie.
	CookieName = "cio_utm_attribution"

	// CookieMaxAge is the sliding expiry window applied on every cookie write.
	CookieMaxAge = 90 * 24 * time.Hour
)

var errUnavailable = errors.New("storage unavailable")

// DurableKeyValueStore is the per-origin storage that survives until cleared.
type DurableKeyValueStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// CookieJar reads and writes cookies for the current page. Cookie returns
// http.ErrNoCookie when the cookie is absent.
type CookieJar interface {
	Cookie(name string) (*http.Cookie, error)
	SetCookie(cookie *http.Cookie)
}

// PagePayload is the properties argument of a page-view call.
type PagePayload map[string]any

// Eligible reports whether the payload was flagged as campaign traffic.
func (p PagePayload) Eligible() bool {
	v, ok := p["utm_eligible"].(bool)
	return ok && v
}

// Store reconciles the current URL with the durable store and the cookie. A Store
// serves a single page view; it is not safe for concurrent use.
type Store struct {
	durable DurableKeyValueStore
	cookies CookieJar
	pageURL *url.URL
	logger  *slog.Logger
}

// NewStore creates a store for one page view. Either storage may be nil, in which
// case it behaves as unavailable.
func NewStore(durable DurableKeyValueStore, cookies CookieJar, pageURL *url.URL, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	return &Store{
		durable: durable,
		cookies: cookies,
		pageURL: pageURL,
		logger:  logger,
	}
}

// PageURL returns the URL of the page view this store serves.
func (s *Store) PageURL() string {
	return s.pageURL.String()
}

// ReadDurable returns the record held by the durable store, or an empty record.
func (s *Store) ReadDurable(ctx context.Context) Record {
	record, err := s.readDurable(ctx)
	if err != nil {
		s.logger.Debug("Durable attribution read failed", "error", err.Error())
		return Record{}
	}
	return record
}

func (s *Store) readDurable(ctx context.Context) (Record, error) {
	if s.durable == nil {
		return nil, errUnavailable
	}
	value, ok, err := s.durable.GetItem(ctx, DurableKey)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", DurableKey, err)
	}
	if !ok {
		return Record{}, nil
	}
	return decode(value)
}

// ReadCookie returns the record held by the cookie, or an empty record.
func (s *Store) ReadCookie() Record {
	record, err := s.readCookie()
	if err != nil {
		s.logger.Debug("Cookie attribution read failed", "error", err.Error())
		return Record{}
	}
	return record
}

func (s *Store) readCookie() (Record, error) {
	if s.cookies == nil {
		return nil, errUnavailable
	}
	cookie, err := s.cookies.Cookie(CookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	value, err := url.PathUnescape(cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("unescape cookie: %w", err)
	}
	return decode(value)
}

func decode(value string) (Record, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return Sanitize(raw), nil
}

// WriteDurable persists the record, or removes the entry when the record is empty.
// Failures are logged and swallowed.
func (s *Store) WriteDurable(ctx context.Context, record Record) {
	if err := s.writeDurable(ctx, record); err != nil {
		s.logger.Debug("Durable attribution write failed", "error", err.Error())
	}
}

func (s *Store) writeDurable(ctx context.Context, record Record) error {
	if s.durable == nil {
		return errUnavailable
	}
	if !record.Eligible() {
		return s.durable.RemoveItem(ctx, DurableKey)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return s.durable.SetItem(ctx, DurableKey, string(data))
}

// WriteCookie writes the record to the cookie with a fresh expiry window, or clears
// the cookie when the record is empty.
func (s *Store) WriteCookie(record Record) {
	if s.cookies == nil {
		s.logger.Debug("Cookie attribution write failed", "error", errUnavailable.Error())
		return
	}
	if !record.Eligible() {
		s.cookies.SetCookie(expiredCookie())
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Debug("Cookie attribution write failed", "error", err.Error())
		return
	}
	s.cookies.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    url.PathEscape(string(data)),
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	})
}

func expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromCurrentURL extracts attribution from the page URL query string.
func (s *Store) FromCurrentURL() Record {
	return FromQuery(s.pageURL.Query())
}

// ResolvePersisted returns the durable record when present. Otherwise it falls back
// to the cookie and heals the durable store from it.
func (s *Store) ResolvePersisted(ctx context.Context) Record {
	if record := s.ReadDurable(ctx); record.Eligible() {
		return record
	}
	record := s.ReadCookie()
	if !record.Eligible() {
		return Record{}
	}
	s.logger.Debug("Healing durable attribution from cookie", "fields", len(record))
	s.WriteDurable(ctx, record)
	return record
}

// Sync merges URL parameters over the persisted record and, when the result is
// non-empty, writes it to both storage layers. Call once per page view before any
// outbound analytics call.
func (s *Store) Sync(ctx context.Context) Record {
	fromURL := s.FromCurrentURL()
	persisted := s.ResolvePersisted(ctx)
	merged := Merge(persisted, fromURL)
	if merged.Eligible() {
		// Both layers are rewritten even when nothing changed.
		s.WriteDurable(ctx, merged)
		s.WriteCookie(merged)
	}
	return merged
}

// BuildPagePayload syncs and returns the page-view properties. utm_eligible is
// present only when at least one field survived sanitization.
func (s *Store) BuildPagePayload(ctx context.Context) PagePayload {
	_, payload := s.SyncPagePayload(ctx)
	return payload
}

// SyncPagePayload is BuildPagePayload that also returns the record the payload
// was built from.
func (s *Store) SyncPagePayload(ctx context.Context) (Record, PagePayload) {
	record := s.Sync(ctx)
	payload := PagePayload{"url": s.PageURL()}
	if !record.Eligible() {
		return record, payload
	}
	payload["utm_eligible"] = true
	for f, v := range record {
		payload[string(f)] = v
	}
	return record, payload
}

// ClearDurable removes the durable record.
func (s *Store) ClearDurable(ctx context.Context) {
	s.WriteDurable(ctx, Record{})
}

// ClearCookie expires the cookie.
func (s *Store) ClearCookie() {
	s.WriteCookie(Record{})
}

// ClearBoth removes the record from both layers.
func (s *Store) ClearBoth(ctx context.Context) {
	s.ClearDurable(ctx)
	s.ClearCookie()
}
