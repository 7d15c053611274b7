package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
base_url: https://api.example.com
refresh_timeout: 5s
store:
  backend: redis
  redis_addr: redis:6379
telegram:
  bot_token: "123:abc"
  chat_id: 42
`), 0600)
	require.NoError(t, err)

	t.Setenv("AUTHCLIENT_REQUEST_TIMEOUT", "45s")
	t.Setenv("AUTHCLIENT_STORE__REDIS_PREFIX", "test:")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, "/auth/refresh", cfg.RefreshPath)
	assert.Equal(t, 5*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "test:", cfg.Store.RedisPrefix)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://file.example.com\nstore:\n  backend: memory\n"), 0600))
	t.Setenv("AUTHCLIENT_BASE_URL", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.BaseURL = "https://api.example.com"
	valid.Store.TokenKey = "secret"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }, "base_url"},
		{"relative refresh path", func(c *Config) { c.RefreshPath = "auth/refresh" }, "refresh_path"},
		{"zero refresh timeout", func(c *Config) { c.RefreshTimeout = 0 }, "refresh_timeout"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "store.backend"},
		{"sqlite without key", func(c *Config) { c.Store.TokenKey = "" }, "store.token_key"},
		{"telegram without chat", func(c *Config) { c.Telegram.BotToken = "x" }, "telegram.chat_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "base_url", envKey("AUTHCLIENT_BASE_URL"))
	assert.Equal(t, "store.sqlite_path", envKey("AUTHCLIENT_STORE__SQLITE_PATH"))
}
