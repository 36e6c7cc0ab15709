package performance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRetainsNewestFirst(t *testing.T) {
	tracker := NewTracker(&TrackerConfig{MaxMarkers: 3})

	for _, op := range []string{"a", "b", "c", "d"} {
		tracker.StartOperation(op, "").Complete()
	}

	recent := tracker.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].Operation)
	assert.Equal(t, "b", recent[2].Operation)
}

func TestMarkerCompletesOnce(t *testing.T) {
	tracker := NewTracker(nil)
	marker := tracker.StartOperation("webhook_put", "v1")
	marker.AddMetadata("key", "order")
	marker.Complete()
	marker.Complete()

	recent := tracker.Recent()
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Success)
	assert.Equal(t, "order", recent[0].Metadata["key"])

	marker.AddMetadata("key", "changed")
	assert.Equal(t, "order", tracker.Recent()[0].Metadata["key"], "recorded markers are snapshots")
}

func TestStats(t *testing.T) {
	tracker := NewTracker(&TrackerConfig{MaxMarkers: 10, SlowThreshold: time.Nanosecond})

	ok := tracker.StartOperation("utm_page_view", "")
	time.Sleep(time.Millisecond)
	ok.Complete()

	failed := tracker.StartOperation("utm_page_view", "")
	failed.SetError(errors.New("boom"))
	failed.Complete()

	tracker.StartOperation("sdk_track", "").Complete()

	stats := tracker.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "sdk_track", stats[0].Operation)
	assert.Equal(t, "utm_page_view", stats[1].Operation)
	assert.Equal(t, 2, stats[1].Count)
	assert.Equal(t, 1, stats[1].Failures)
	assert.GreaterOrEqual(t, stats[1].Slow, 1)
	assert.GreaterOrEqual(t, stats[1].Max, time.Millisecond)
	assert.Positive(t, tracker.Uptime())
}
