package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	settings, err := Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", settings.Port)
	assert.Equal(t, time.Duration(0), settings.ServerWriteTimeout)
	assert.Equal(t, "sqlite3", settings.DBDriver)
	assert.Equal(t, "us", settings.CIORegion)
	assert.Equal(t, 720*time.Hour, settings.PageViewHistoryRetention)
	assert.Equal(t, uint(3), settings.CDPMaxRetries)
	assert.Equal(t, 200, settings.ConsoleMaxEntries)
	assert.Len(t, settings.AllowedOrigins, 3)
}

func TestParseOverrides(t *testing.T) {
	settings, err := Parse(map[string]string{
		"PORT":            "9090",
		"ALLOWED_ORIGINS": "https://a.example,https://b.example",
		"CIO_WRITE_KEY":   "wk_live",
		"CIO_REGION":      "eu",
		"CDP_TIMEOUT":     "2s",
		"LOG_JSON":        "false",
	})
	require.NoError(t, err)

	assert.Equal(t, "9090", settings.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, settings.AllowedOrigins)
	assert.Equal(t, "wk_live", settings.CIOWriteKey)
	assert.Equal(t, "eu", settings.CIORegion)
	assert.Equal(t, 2*time.Second, settings.CDPTimeout)
	assert.False(t, settings.LogJSON)
}

func TestParseRejectsBadValues(t *testing.T) {
	_, err := Parse(map[string]string{"SERVER_READ_TIMEOUT": "soon"})
	assert.Error(t, err)
}

func TestIsSecret(t *testing.T) {
	assert.True(t, isSecret("CIO_WRITE_KEY"))
	assert.True(t, isSecret("HARNESS_SECRET"))
	assert.False(t, isSecret("CIO_REGION"))
}
