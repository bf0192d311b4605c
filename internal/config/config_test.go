package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Shield.MaxRequestsPerWindow)
	assert.Equal(t, 60*time.Second, cfg.Shield.Window)
	assert.Equal(t, 5*time.Minute, cfg.Shield.BlockDuration)
	assert.Equal(t, time.Minute, cfg.Shield.SweepInterval)
	assert.Equal(t, 5000, cfg.Shield.MaxMessageLength)
	assert.Equal(t, 20000, cfg.Shield.MaxReplyLength)
	assert.Equal(t, 30*24*time.Hour, cfg.Postgres.EventRetention)
	assert.Equal(t, int64(100000), cfg.Shield.MaxRequestSize)
	assert.Equal(t, "memory", cfg.Shield.Store)
	assert.Empty(t, cfg.Shield.APIKey)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "1000")
	t.Setenv("RATE_LIMIT_BLOCK_DURATION", "2500")
	t.Setenv("MAX_MESSAGE_LENGTH", "42")
	t.Setenv("MAX_REQUEST_SIZE", "2048")
	t.Setenv("CHAT_API_KEY", "s3cret")
	t.Setenv("QUOTA_STORE", "Redis")
	t.Setenv("OPENAI_BASE_URLS", "http://a/v1, http://b/v1,")
	t.Setenv("ADMIN_JWT_SECRET", "jwt")
	t.Setenv("MAX_REPLY_LENGTH", "900")
	t.Setenv("SECURITY_EVENT_RETENTION_DAYS", "0")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Shield.MaxRequestsPerWindow)
	assert.Equal(t, time.Second, cfg.Shield.Window)
	assert.Equal(t, 2500*time.Millisecond, cfg.Shield.BlockDuration)
	assert.Equal(t, 42, cfg.Shield.MaxMessageLength)
	assert.Equal(t, int64(2048), cfg.Shield.MaxRequestSize)
	assert.Equal(t, "s3cret", cfg.Shield.APIKey)
	assert.Equal(t, "redis", cfg.Shield.Store)
	assert.Equal(t, []string{"http://a/v1", "http://b/v1"}, cfg.LLM.BaseURLs)
	assert.True(t, cfg.AdminEnabled())
	assert.Equal(t, 900, cfg.Shield.MaxReplyLength)
	assert.Zero(t, cfg.Postgres.EventRetention)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "twenty")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_MAX_REQUESTS")
}

func TestLoad_RejectsNonPositive(t *testing.T) {
	t.Setenv("RATE_LIMIT_WINDOW_MS", "0")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_UnknownStore(t *testing.T) {
	t.Setenv("QUOTA_STORE", "etcd")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server":{"port":"9000","environment":"production"},"shield":{"max_requests_per_window":7}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.Equal(t, 7, cfg.Shield.MaxRequestsPerWindow)
	assert.Equal(t, 5*time.Minute, cfg.Shield.BlockDuration)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestRedisAddr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.GetRedisAddr())
}

func TestLoad_FileStoreIsNormalised(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"shield":{"store":" Redis "}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Shield.Store)
}

func TestLoad_RejectsNegativeRetention(t *testing.T) {
	t.Setenv("SECURITY_EVENT_RETENTION_DAYS", "-1")

	_, err := Load("")
	require.Error(t, err)
}
