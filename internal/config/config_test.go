package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "JWT_SECRET", "REDIS_ENABLED", "CANVAS_PAGE_WIDTH", "CANVAS_ALLOW_RESET", "CANVAS_SESSION_IDLE_TTL", "CANVAS_SESSION_SWEEP_INTERVAL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.False(t, cfg.Auth.Enabled())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 794.0, cfg.Canvas.PageWidth)
	assert.Equal(t, 1123.0, cfg.Canvas.PageHeight)
	assert.False(t, cfg.Canvas.AllowReset)
	assert.Equal(t, 15*time.Minute, cfg.Canvas.SessionIdleTTL)
	assert.Equal(t, time.Minute, cfg.Canvas.SessionSweepInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_ENABLED", "1")
	t.Setenv("EXPORT_CACHE_TTL", "90")
	t.Setenv("WS_PING_INTERVAL", "15s")
	t.Setenv("CANVAS_PAGE_WIDTH", "595.5")
	t.Setenv("CANVAS_ALLOW_RESET", "true")
	t.Setenv("CANVAS_SESSION_IDLE_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.True(t, cfg.Auth.Enabled())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Redis.ExportTTL)
	assert.Equal(t, 15*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 595.5, cfg.Canvas.PageWidth)
	assert.True(t, cfg.Canvas.AllowReset)
	assert.Equal(t, 5*time.Minute, cfg.Canvas.SessionIdleTTL)
}

func TestLoad_RejectsSampleSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", insecureSecret)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsBadPageSize(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CANVAS_PAGE_HEIGHT", "-1")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsZeroSweepInterval(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CANVAS_SESSION_SWEEP_INTERVAL", "0")
	_, err := Load()
	assert.Error(t, err)
}
