//go:build unit

package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOOKSTORE_BACKEND_URL", "http://shop.local:8000/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://shop.local:8000", cfg.BackendURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 8, cfg.PageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.FadeDelay)
	assert.Equal(t, "csrftoken", cfg.CSRFCookie)
	assert.Equal(t, "X-CSRFToken", cfg.CSRFHeader)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BOOKSTORE_BACKEND_URL", "https://api.example.com")
	t.Setenv("BOOKSTORE_PAGE_SIZE", "12")
	t.Setenv("BOOKSTORE_FADE_DELAY", "0s")
	t.Setenv("BOOKSTORE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.PageSize)
	assert.Zero(t, cfg.FadeDelay)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_MissingBackend(t *testing.T) {
	t.Setenv("BOOKSTORE_BACKEND_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("BOOKSTORE_BACKEND_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_BadPageSize(t *testing.T) {
	t.Setenv("BOOKSTORE_BACKEND_URL", "http://localhost:8000")
	t.Setenv("BOOKSTORE_PAGE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
}
