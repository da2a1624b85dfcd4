package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "APP_ENV", "DB_DRIVER", "DATABASE_URL", "SQLITE_PATH", "REDIS_URL", "JWT_SECRET",
		"ADMIN_USERNAME", "ADMIN_PASSWORD", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "CORS_ORIGINS", "BOT_REPLY_DELAY",
		"RECONNECT_DELAY", "RECONCILE_INTERVAL", "API_BASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DegradesWithoutDatabaseOrSecret(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Len(t, cfg.JWTSecret, 64)
	assert.False(t, cfg.AdminEnabled())
	assert.Len(t, cfg.Warnings, 3)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 1500*time.Millisecond, cfg.BotReplyDelay)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/h.db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("CORS_ORIGINS", "https://hekumbi.co.ao, https://admin.hekumbi.co.ao")
	t.Setenv("BOT_REPLY_DELAY", "200")
	t.Setenv("RECONNECT_DELAY", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.True(t, cfg.AdminEnabled())
	assert.Empty(t, cfg.Warnings)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://hekumbi.co.ao", "https://admin.hekumbi.co.ao"}, cfg.CORSOrigins)
	assert.Equal(t, 200*time.Millisecond, cfg.BotReplyDelay)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "mongo")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
}
