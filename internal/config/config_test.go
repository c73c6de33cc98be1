package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birbparty/shelf/internal/cache"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHELF_ENV", "")
	t.Setenv("SHELF_BASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.Equal(t, cache.BackendFile, cfg.Session.Backend)
	assert.Empty(t, cfg.Path)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
environment = "production"
base_url = "https://shop.example.com/api"
timeout = "5s"
retries = 2
retry_delay = "250ms"

[headers]
X-Client = "warehouse"

[session]
backend = "redis"
namespace = "warehouse"
redis_host = "cache.internal"
redis_port = 6380
ttl = "12h"

[events]
nats_url = "nats://bus:4222"

[metrics]
pushgateway_url = "http://pushgateway:9091"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, "https://shop.example.com/api", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, map[string]string{"X-Client": "warehouse"}, cfg.Headers)
	assert.Equal(t, cache.BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "warehouse", cfg.Session.Namespace)
	assert.Equal(t, "cache.internal:6380", cfg.Session.RedisAddress())
	assert.Equal(t, 12*time.Hour, cfg.Session.SessionTTL)
	assert.Equal(t, "nats://bus:4222", cfg.NATSURL)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)

	sdkCfg := cfg.SDKConfig()
	assert.Equal(t, "https://shop.example.com/api", sdkCfg.BaseURL)
	assert.Equal(t, 2, sdkCfg.RetryConfig.MaxRetries)
	assert.Equal(t, "warehouse", sdkCfg.Headers["X-Client"])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
environment = "production"
base_url = "https://shop.example.com"
retries = 1
`)
	t.Setenv("SHELF_BASE_URL", "https://staging.example.com")
	t.Setenv("SHELF_RETRIES", "3")
	t.Setenv("SHELF_SESSION_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com", cfg.BaseURL)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, cache.BackendMemory, cfg.Session.Backend)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{name: "production without url", content: `environment = "production"`},
		{name: "unknown environment", content: `environment = "staging"`},
		{name: "bad timeout", content: `timeout = "soon"`},
		{name: "negative retries", content: `retries = -1`},
		{name: "bad toml", content: `timeout = `},
		{name: "postgres without url", content: "[session]\nbackend = \"postgres\""},
		{name: "bad env retries", content: ``, env: map[string]string{"SHELF_RETRIES": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SHELF_BASE_URL", "")
			t.Setenv("SHELF_POSTGRES_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/shelf/session.toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "shelf", "session.toml"), got)

	_, err = expandPath("  ")
	assert.Error(t, err)
}
