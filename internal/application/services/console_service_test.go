package services

import (
	"testing"

	"github.com/AtRiskMedia/cio-harness/internal/domain/console"
	"github.com/AtRiskMedia/cio-harness/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEntries []console.Entry

func (p *publishedEntries) Publish(e console.Entry) { *p = append(*p, e) }

func TestConsoleRingBuffer(t *testing.T) {
	var published publishedEntries
	svc := NewConsoleService(3, &published, logging.NewDiscardLogger())

	for _, msg := range []string{"one", "two", "three", "four"} {
		svc.Add(console.TypeInfo, msg, nil)
	}

	entries := svc.Entries(false)
	require.Len(t, entries, 3)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "four", entries[2].Message)
	assert.Len(t, published, 4)

	svc.Clear()
	assert.Empty(t, svc.Entries(false))
}

func TestConsolePayloadAndRedaction(t *testing.T) {
	svc := NewConsoleService(10, nil, logging.NewDiscardLogger())

	svc.Add(console.TypeAction, "Identifying user: u1", map[string]any{"userId": "u1"})
	svc.Add(console.TypeInfo, "key wk_live_abcdef and tiny abc", "payload wk_live_abcdef", "wk_live_abcdef", "abc", "")

	entries := svc.Entries(true)
	require.Len(t, entries, 2)
	assert.JSONEq(t, `{"userId":"u1"}`, entries[0].Payload)
	assert.Equal(t, "key wk_li... and tiny abc", entries[1].Message)
	assert.Equal(t, "payload wk_li...", entries[1].Payload)

	plain := svc.Entries(false)
	assert.Equal(t, "key wk_live_abcdef and tiny abc", plain[1].Message)
}
