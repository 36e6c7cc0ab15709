package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

type pageView struct {
	URL     string         `json:"url"`
	Payload map[string]any `json:"payload"`
}

func decodePageViews(t *testing.T, out string) []pageView {
	t.Helper()
	var views []pageView
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var v pageView
		require.NoError(t, dec.Decode(&v))
		views = append(views, v)
	}
	return views
}

func TestPageCarriesCampaignToOrganicVisit(t *testing.T) {
	out, err := execute(t, "page",
		"https://example.com/landing?utm_source=google&utm_campaign=spring",
		"https://example.com/pricing",
	)
	require.NoError(t, err)

	views := decodePageViews(t, out)
	require.Len(t, views, 2)
	assert.Equal(t, true, views[0].Payload["utm_eligible"])
	assert.Equal(t, map[string]any{
		"url":          "https://example.com/pricing",
		"utm_eligible": true,
		"source":       "google",
		"campaign":     "spring",
	}, views[1].Payload)
}

func TestPageOrganicOnly(t *testing.T) {
	out, err := execute(t, "page", "https://example.com/")
	require.NoError(t, err)

	views := decodePageViews(t, out)
	require.Len(t, views, 1)
	assert.Equal(t, map[string]any{"url": "https://example.com/"}, views[0].Payload)
}

func TestPageAdvancePastCookieLifetimeKeepsDurableRecord(t *testing.T) {
	out, err := execute(t, "page", "--advance", "2200h",
		"https://example.com/?utm_medium=email",
		"https://example.com/later",
	)
	require.NoError(t, err)

	views := decodePageViews(t, out)
	require.Len(t, views, 2)
	assert.Equal(t, "email", views[1].Payload["medium"], "cookie has expired, durable storage still holds the record")
}

func TestPageURLOverridesCarriedRecord(t *testing.T) {
	out, err := execute(t, "page",
		"https://example.com/?utm_campaign=spring",
		"https://example.com/?utm_campaign=summer",
		"https://example.com/",
	)
	require.NoError(t, err)

	views := decodePageViews(t, out)
	require.Len(t, views, 3)
	assert.Equal(t, "summer", views[2].Payload["campaign"])
}

func TestPageSend(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/page", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := execute(t, "page", "--send",
		"--write-key", "wk_test_123456",
		"--endpoint", srv.URL,
		"--anonymous-id", "anon-1",
		"--name", "CLI Visit",
		"https://example.com/?utm_source=newsletter",
	)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Equal(t, "CLI Visit", bodies[0]["name"])
	assert.Equal(t, "anon-1", bodies[0]["anonymousId"])
	props := bodies[0]["properties"].(map[string]any)
	assert.Equal(t, "newsletter", props["source"])
}

func TestPageRejectsBadURL(t *testing.T) {
	_, err := execute(t, "page", "http://[::1")
	assert.Error(t, err)
}

func TestWebhookPutGetList(t *testing.T) {
	store := filepath.Join(t.TempDir(), "webhook.json")

	out, err := execute(t, "webhook", "--store", store, "put", "order", `{"id":7}`)
	require.NoError(t, err)
	assert.Contains(t, out, "stored order at")

	_, err = execute(t, "webhook", "--store", store, "put", "alpha", `{}`)
	require.NoError(t, err)

	out, err = execute(t, "webhook", "--store", store, "get", "order")
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, "order", entry["key"])
	assert.Equal(t, map[string]any{"id": float64(7)}, entry["data"])

	out, err = execute(t, "webhook", "--store", store, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "alpha\t"))
	assert.True(t, strings.HasPrefix(lines[1], "order\t"))
}

func TestWebhookErrors(t *testing.T) {
	store := filepath.Join(t.TempDir(), "webhook.json")

	_, err := execute(t, "webhook", "--store", store, "put", "k", `[1,2]`)
	assert.Error(t, err)

	_, err = execute(t, "webhook", "--store", store, "get", "missing")
	assert.Error(t, err)

	_, err = execute(t, "webhook", "--store", store, "put", " ", `{}`)
	assert.Error(t, err)
}
