package history

import (
	"context"
	"testing"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/history"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/persistence/database/databasetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageViewRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLPageViewRepository(databasetest.Open(t), logging.NewDiscardLogger())
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for i, campaign := range []string{"first", "second", "third"} {
		view := &history.PageView{
			VisitorID:   "v1",
			URL:         "https://example.com/?utm_campaign=" + campaign,
			Name:        "UTM Persistence Test",
			UTMEligible: true,
			Payload:     map[string]any{"url": "https://example.com/", "utm_eligible": true, "campaign": campaign},
			Sent:        i%2 == 0,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Store(ctx, view))
		assert.NotEmpty(t, view.ID)
	}
	require.NoError(t, repo.Store(ctx, &history.PageView{VisitorID: "v2", URL: "https://example.com/"}))

	views, err := repo.FindByVisitor(ctx, "v1", 2)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "third", views[0].Payload["campaign"])
	assert.Equal(t, "second", views[1].Payload["campaign"])
	assert.True(t, views[0].Sent)
	assert.False(t, views[1].Sent)
	assert.True(t, views[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	n, err := repo.PurgeOlderThan(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	views, err = repo.FindByVisitor(ctx, "v1", 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "third", views[0].Payload["campaign"])

	views, err = repo.FindByVisitor(ctx, "v2", 10)
	require.NoError(t, err)
	require.Len(t, views, 1, "recent rows survive the purge")
	assert.False(t, views[0].UTMEligible)
}
