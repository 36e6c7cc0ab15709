package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/domain/history"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/performance"
	historyrepo "github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/history"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/database/databasetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestPageViewCarriesAttributionAcrossVisits(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	jar := cookieJar{}

	first := h.attribution.PageView(ctx, "v1", jar, mustURL(t, "https://example.com/utm-test?utm_source=google&utm_campaign=spring"))
	assert.True(t, first.HasUTMs)
	assert.Equal(t, "Campaign Visitor", first.VisitorType())
	assert.Equal(t, attribution.Record{attribution.FieldSource: "google", attribution.FieldCampaign: "spring"}, first.FromURL)

	second := h.attribution.PageView(ctx, "v1", cookieJar{}, mustURL(t, "https://example.com/utm-test"))
	assert.True(t, second.HasUTMs, "durable storage carries the record without the cookie")
	assert.Empty(t, second.FromURL)
	assert.Equal(t, "google", second.PagePayload["source"])
	assert.Equal(t, true, second.PagePayload["utm_eligible"])
	assert.Equal(t, second.Durable, second.Cookie)

	other := h.attribution.PageView(ctx, "v2", cookieJar{}, mustURL(t, "https://example.com/utm-test"))
	assert.False(t, other.HasUTMs)
	assert.Equal(t, "Organic Visitor", other.VisitorType())
	assert.Equal(t, attribution.PagePayload{"url": "https://example.com/utm-test"}, other.PagePayload)

	require.Len(t, h.notifier.events, 2)
	assert.Equal(t, "synced", h.notifier.events[0].Kind)
}

func TestPersistedValuesFollowCookieWhenDurableFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	jar := cookieJar{}

	h.attribution.PageView(ctx, "v1", jar, mustURL(t, "https://example.com/utm-test?utm_campaign=spring"))
	h.durable.store("v1").FailWith = errors.New("quota exceeded")

	state := h.attribution.PageView(ctx, "v1", jar, mustURL(t, "https://example.com/utm-test"))
	assert.True(t, state.HasUTMs)
	assert.Empty(t, state.Durable)
	assert.Equal(t, "spring", state.PagePayload["campaign"])
	assert.Equal(t, attribution.Record{attribution.FieldCampaign: "spring"}, state.UTMData)
	assert.Equal(t, "spring", state.UTMData.Get(attribution.FieldCampaign))
}

func TestClearLayers(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	jar := cookieJar{}
	h.attribution.PageView(ctx, "v1", jar, mustURL(t, "https://example.com/?utm_medium=email"))

	require.NoError(t, h.attribution.Clear(ctx, "v1", jar, LayerCookie))
	_, err := jar.Cookie(attribution.CookieName)
	assert.Error(t, err)
	assert.Equal(t, 1, h.durable.store("v1").Len())

	require.NoError(t, h.attribution.Clear(ctx, "v1", jar, LayerDurable))
	assert.Zero(t, h.durable.store("v1").Len())

	h.attribution.PageView(ctx, "v1", jar, mustURL(t, "https://example.com/?utm_medium=email"))
	require.NoError(t, h.attribution.Clear(ctx, "v1", jar, LayerAll))
	state := h.attribution.PageView(ctx, "v1", jar, mustURL(t, "https://example.com/"))
	assert.False(t, state.HasUTMs)

	assert.ErrorIs(t, h.attribution.Clear(ctx, "v1", jar, "session"), ErrUnknownLayer)

	last := h.notifier.events[len(h.notifier.events)-1]
	assert.Equal(t, "cleared", last.Kind)
	assert.Equal(t, LayerAll, last.Layer)
	assert.Empty(t, last.Durable)
}

func TestHistoryAndPurge(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewDiscardLogger()
	repo := historyrepo.NewSQLPageViewRepository(databasetest.Open(t), logger)
	svc := NewAttributionService(newMemoryProvider(), repo, nil, logger, performance.NewTracker(nil))

	require.NoError(t, svc.RecordPageView(ctx, &history.PageView{
		VisitorID: "v1", URL: "https://example.com/old", CreatedAt: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, svc.RecordPageView(ctx, &history.PageView{VisitorID: "v1", URL: "https://example.com/new"}))

	views, err := svc.History(ctx, "v1", 10)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "https://example.com/new", views[0].URL)

	n, err := svc.PurgeHistory(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = svc.PurgeHistory(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	views, err = svc.History(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}
