package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/AtRiskMedia/cio-harness/internal/domain/attribution"
	"github.com/AtRiskMedia/cio-harness/internal/domain/console"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func receive(t *testing.T, ch <-chan []byte) console.Entry {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		var entry console.Entry
		require.NoError(t, json.Unmarshal(msg, &entry))
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for console entry")
		return console.Entry{}
	}
}

func TestConsoleBroadcasterRedactsPerClient(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	b := NewConsoleBroadcaster(logging.NewDiscardLogger())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	redacted := NewConsoleClient(nil, true)
	plain := NewConsoleClient(nil, false)
	require.True(t, b.Register(redacted))
	require.True(t, b.Register(plain))

	b.Publish(console.Entry{
		ID:      "1",
		Type:    console.TypeInit,
		Message: "Analytics initialized with write key wk_live_abcdef",
		Secrets: []string{"wk_live_abcdef"},
	})

	assert.Equal(t, "Analytics initialized with write key wk_li...", receive(t, redacted.Send).Message)
	assert.Equal(t, "Analytics initialized with write key wk_live_abcdef", receive(t, plain.Send).Message)

	b.Unregister(plain)
	_, open := <-plain.Send
	assert.False(t, open)

	cancel()
	require.NoError(t, <-done)
	_, open = <-redacted.Send
	assert.False(t, open, "clients are closed when the loop stops")
	assert.False(t, b.Register(NewConsoleClient(nil, true)))
}

func TestSSEBroadcasterScopesByVisitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := NewSSEBroadcaster(logging.NewDiscardLogger())
	alice := b.AddClient("alice")
	alice2 := b.AddClient("alice")
	bob := b.AddClient("bob")
	assert.Equal(t, 2, b.ConnectionCount("alice"))

	b.BroadcastAttribution("alice", AttributionEvent{
		Kind:    "synced",
		Durable: attribution.Record{attribution.FieldCampaign: "spring"},
		Cookie:  attribution.Record{attribution.FieldCampaign: "spring"},
	})

	for _, ch := range []chan string{alice, alice2} {
		msg := <-ch
		require.True(t, strings.HasPrefix(msg, "event: attribution\ndata: "))
		require.True(t, strings.HasSuffix(msg, "\n\n"))
		data := strings.TrimSuffix(strings.TrimPrefix(msg, "event: attribution\ndata: "), "\n\n")
		assert.JSONEq(t, `{"kind":"synced","durable":{"campaign":"spring"},"cookie":{"campaign":"spring"}}`, data)
	}
	assert.Empty(t, bob)

	b.RemoveClient(alice, "alice")
	b.RemoveClient(alice2, "alice")
	assert.Zero(t, b.ConnectionCount("alice"))
	assert.Equal(t, 1, b.ConnectionCount("bob"))
}

func TestSSEBroadcasterDropsWhenFull(t *testing.T) {
	b := NewSSEBroadcaster(logging.NewDiscardLogger())
	ch := b.AddClient("v")
	for i := 0; i < cap(ch)+5; i++ {
		b.BroadcastAttribution("v", AttributionEvent{Kind: "cleared", Layer: "both"})
	}
	assert.Len(t, ch, cap(ch))
}
