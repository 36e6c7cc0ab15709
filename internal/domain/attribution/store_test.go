package attribution_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	durable *storage.MemoryDurableStore
	cookies *storage.MemoryCookieJar
	now     time.Time
}

func newFixture() *fixture {
	f := &fixture{
		durable: storage.NewMemoryDurableStore(),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.cookies = storage.NewMemoryCookieJar(func() time.Time { return f.now })
	return f
}

func (f *fixture) store(t *testing.T, rawURL string) *attribution.Store {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return attribution.NewStore(f.durable, f.cookies, u, nil)
}

func (f *fixture) seedDurable(t *testing.T, raw map[string]any) {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, f.durable.SetItem(context.Background(), attribution.DurableKey, string(data)))
}

func (f *fixture) seedCookie(t *testing.T, raw map[string]any) {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	f.cookies.SetCookie(&http.Cookie{
		Name:   attribution.CookieName,
		Value:  url.PathEscape(string(data)),
		Path:   "/",
		MaxAge: int(attribution.CookieMaxAge / time.Second),
	})
}

func campaign(v string) attribution.Record {
	return attribution.Record{attribution.FieldCampaign: v}
}

func TestSyncHealsDurableFromCookie(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedCookie(t, map[string]any{"campaign": "x"})

	store := f.store(t, "https://example.com/utm-test")
	got := store.Sync(ctx)

	assert.Equal(t, campaign("x"), got)
	assert.Equal(t, campaign("x"), store.ReadDurable(ctx))
}

func TestSyncURLOverridesPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedDurable(t, map[string]any{"campaign": "old"})

	store := f.store(t, "https://example.com/?utm_campaign=new")
	got := store.Sync(ctx)

	assert.Equal(t, campaign("new"), got)
	assert.Equal(t, campaign("new"), store.ReadDurable(ctx))
	assert.Equal(t, campaign("new"), store.ReadCookie())
}

func TestSyncMergesURLOverPersistedFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedDurable(t, map[string]any{"source": "google", "campaign": "spring"})

	got := f.store(t, "https://example.com/?utm_medium=cpc").Sync(ctx)

	assert.Equal(t, attribution.Record{
		attribution.FieldSource:   "google",
		attribution.FieldCampaign: "spring",
		attribution.FieldMedium:   "cpc",
	}, got)
}

func TestSyncPrefersDurableOverCookie(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedDurable(t, map[string]any{"campaign": "durable"})
	f.seedCookie(t, map[string]any{"campaign": "cookie"})

	store := f.store(t, "https://example.com/")
	assert.Equal(t, campaign("durable"), store.Sync(ctx))
	assert.Equal(t, campaign("durable"), store.ReadCookie(), "cookie is rewritten from the merged record")
}

func TestSyncOrganicLeavesStorageUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	got := f.store(t, "https://example.com/").Sync(ctx)

	assert.Empty(t, got)
	assert.Zero(t, f.durable.Len())
	_, err := f.cookies.Cookie(attribution.CookieName)
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestBuildPagePayloadOrganic(t *testing.T) {
	f := newFixture()
	const pageURL = "https://example.com/utm-test"

	payload := f.store(t, pageURL).BuildPagePayload(context.Background())

	assert.Equal(t, attribution.PagePayload{"url": pageURL}, payload)
	_, present := payload["utm_eligible"]
	assert.False(t, present)
	assert.False(t, payload.Eligible())
}

func TestBuildPagePayloadPersisted(t *testing.T) {
	f := newFixture()
	f.seedDurable(t, map[string]any{"source": "google", "campaign": "aaron_anon_persist"})
	const pageURL = "https://example.com/utm-test"

	payload := f.store(t, pageURL).BuildPagePayload(context.Background())

	assert.Equal(t, attribution.PagePayload{
		"url":          pageURL,
		"utm_eligible": true,
		"source":       "google",
		"campaign":     "aaron_anon_persist",
	}, payload)
	assert.True(t, payload.Eligible())
}

func TestSyncPagePayloadReturnsPayloadRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedCookie(t, map[string]any{"campaign": "spring"})
	f.durable.FailWith = errors.New("quota exceeded")

	record, payload := f.store(t, "https://example.com/utm-test").SyncPagePayload(ctx)
	assert.Equal(t, campaign("spring"), record)
	assert.Equal(t, attribution.PagePayload{
		"url":          "https://example.com/utm-test",
		"utm_eligible": true,
		"campaign":     "spring",
	}, payload)
}

func TestClearBothThenResolvePersistedIsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedDurable(t, map[string]any{"campaign": "a"})
	f.seedCookie(t, map[string]any{"source": "b"})

	store := f.store(t, "https://example.com/")
	store.ClearBoth(ctx)

	assert.Empty(t, store.ResolvePersisted(ctx))
	assert.Zero(t, f.durable.Len())
}

func TestClearSingleLayerHealsFromTheOther(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedDurable(t, map[string]any{"campaign": "a"})
	f.seedCookie(t, map[string]any{"campaign": "a"})

	store := f.store(t, "https://example.com/")
	store.ClearDurable(ctx)
	assert.Empty(t, store.ReadDurable(ctx))
	assert.Equal(t, campaign("a"), store.ResolvePersisted(ctx))
	assert.Equal(t, campaign("a"), store.ReadDurable(ctx))

	store.ClearCookie()
	assert.Empty(t, store.ReadCookie())
	assert.Equal(t, campaign("a"), store.ResolvePersisted(ctx))
}

func TestClearThenSyncDerivesFromURLOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedDurable(t, map[string]any{"source": "old"})

	store := f.store(t, "https://example.com/?utm_campaign=fresh")
	store.ClearBoth(ctx)

	assert.Equal(t, campaign("fresh"), store.Sync(ctx))
}

func TestCookieWriteResetsExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.store(t, "https://example.com/?utm_campaign=x").Sync(ctx)
	first, ok := f.cookies.Expiry(attribution.CookieName)
	require.True(t, ok)
	assert.Equal(t, f.now.Add(attribution.CookieMaxAge), first)

	f.now = f.now.Add(24 * time.Hour)
	f.store(t, "https://example.com/?utm_campaign=x").Sync(ctx)
	second, ok := f.cookies.Expiry(attribution.CookieName)
	require.True(t, ok)

	assert.Equal(t, f.now.Add(attribution.CookieMaxAge), second)
	assert.Equal(t, 24*time.Hour, second.Sub(first))
}

func TestCookieExpiresAfterNinetyDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	store := f.store(t, "https://example.com/?utm_source=x")
	store.Sync(ctx)
	require.NoError(t, f.durable.RemoveItem(ctx, attribution.DurableKey))

	f.now = f.now.Add(attribution.CookieMaxAge)
	assert.Empty(t, f.store(t, "https://example.com/").ResolvePersisted(ctx))
}

func TestCookieAttributes(t *testing.T) {
	rec := newRecordingJar()
	u, _ := url.Parse("https://example.com/?utm_source=google")

	attribution.NewStore(nil, rec, u, nil).WriteCookie(attribution.Record{attribution.FieldSource: "google"})

	require.Len(t, rec.set, 1)
	c := rec.set[0]
	assert.Equal(t, attribution.CookieName, c.Name)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 7776000, c.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.False(t, c.Secure)
	assert.False(t, c.HttpOnly)

	decoded, err := url.PathUnescape(c.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"google"}`, decoded)
}

func TestMalformedStorageDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.durable.SetItem(ctx, attribution.DurableKey, "{not json"))
	f.cookies.SetCookie(&http.Cookie{Name: attribution.CookieName, Value: "%zz", MaxAge: 60})

	store := f.store(t, "https://example.com/")

	assert.Empty(t, store.ReadDurable(ctx))
	assert.Empty(t, store.ReadCookie())
	assert.Empty(t, store.Sync(ctx))
}

func TestNonObjectStorageDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.durable.SetItem(ctx, attribution.DurableKey, `["campaign"]`))

	assert.Empty(t, f.store(t, "https://example.com/").ReadDurable(ctx))
}

func TestDurableFailureFallsBackToCookie(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedCookie(t, map[string]any{"campaign": "c"})
	f.durable.FailWith = errors.New("quota exceeded")

	store := f.store(t, "https://example.com/?utm_source=s")
	got := store.Sync(ctx)

	assert.Equal(t, attribution.Record{
		attribution.FieldCampaign: "c",
		attribution.FieldSource:   "s",
	}, got)
	assert.Equal(t, got, store.ReadCookie())
}

func TestUnavailableStorage(t *testing.T) {
	ctx := context.Background()
	u, _ := url.Parse("https://example.com/?utm_term=shoes")
	store := attribution.NewStore(nil, nil, u, nil)

	assert.Equal(t, attribution.Record{attribution.FieldTerm: "shoes"}, store.Sync(ctx))
	assert.NotPanics(t, func() { store.ClearBoth(ctx) })
	assert.Empty(t, store.ResolvePersisted(ctx))
}

func TestPersistedRecordDropsUnknownKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedDurable(t, map[string]any{"campaign": "x", "gclid": "abc", "utm_id": "1"})

	assert.Equal(t, campaign("x"), f.store(t, "https://example.com/").ReadDurable(ctx))
}

type recordingJar struct {
	set []*http.Cookie
}

func newRecordingJar() *recordingJar { return &recordingJar{} }

func (r *recordingJar) Cookie(string) (*http.Cookie, error) { return nil, http.ErrNoCookie }

func (r *recordingJar) SetCookie(c *http.Cookie) { r.set = append(r.set, c) }
