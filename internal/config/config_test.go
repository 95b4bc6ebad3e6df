package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MinimalFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, `{"telegram_token": "123:abc", "superuser_ids": [100, 200]}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, []int64{100, 200}, cfg.SuperuserIDs)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window.Std())
	assert.Equal(t, 12, cfg.RateLimit.RequestLimit)
	assert.Equal(t, 32, cfg.RateLimit.BanThreshold)
	assert.Equal(t, 30*time.Minute, cfg.RateLimit.TempBlock.Std())
	assert.Equal(t, []string{"11:00", "13:00", "15:00"}, cfg.Lessons.Times)
	assert.Equal(t, 250*time.Millisecond, cfg.Broadcast.Delay.Std())
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL.Std())
	assert.True(t, cfg.RestartOnFailure)
	assert.True(t, cfg.IsSuperuser(200))
	assert.False(t, cfg.IsSuperuser(300))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"telegram_token": "t",
		"superuser_ids": [1],
		"database": {"driver": "postgres", "dsn": "postgres://localhost/inspira"},
		"rate_limit": {"window": "1m", "request_limit": 5},
		"lessons": {"capacity": 6, "times": ["12:00"], "activities": ["Painting"]},
		"session_ttl": "5m"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window.Std())
	assert.Equal(t, 5, cfg.RateLimit.RequestLimit)
	assert.Equal(t, 32, cfg.RateLimit.BanThreshold)
	assert.Equal(t, 6, cfg.Lessons.Capacity)
	assert.Equal(t, []string{"12:00"}, cfg.Lessons.Times)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL.Std())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{"telegram_token": "from-file", "superuser_ids": [1]}`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("SUPERUSER_IDS", "5,6")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RATE_LIMIT_TEMP_BLOCK", "10m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.TelegramToken)
	assert.Equal(t, []int64{5, 6}, cfg.SuperuserIDs)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.TempBlock.Std())
}

func TestLoad_RestartOnFailureOptOut(t *testing.T) {
	path := writeConfig(t, `{"telegram_token": "t", "superuser_ids": [1], "restart_on_failure": false}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.RestartOnFailure)

	path = writeConfig(t, `{"telegram_token": "t", "superuser_ids": [1]}`)
	t.Setenv("RESTART_ON_FAILURE", "false")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.RestartOnFailure)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"telegram_token": `},
		{"missing token", `{"superuser_ids": [1]}`},
		{"missing superusers", `{"telegram_token": "t"}`},
		{"webhook without url", `{"telegram_token": "t", "superuser_ids": [1], "http": {"webhook_mode": true}}`},
		{"unknown driver", `{"telegram_token": "t", "superuser_ids": [1], "database": {"driver": "mysql"}}`},
		{"bad duration", `{"telegram_token": "t", "superuser_ids": [1], "session_ttl": "soon"}`},
		{"bad digest hour", `{"telegram_token": "t", "superuser_ids": [1], "digest_hour": 24}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("INSPIRA_CONFIG", "")
	assert.Equal(t, DefaultPath, Path())

	t.Setenv("INSPIRA_CONFIG", "/etc/inspira.json")
	assert.Equal(t, "/etc/inspira.json", Path())
}
