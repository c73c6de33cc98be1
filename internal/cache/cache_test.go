package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespacedStore(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryStore()
	alice := NewNamespacedStore(shared, "alice")
	bob := NewNamespacedStore(shared, "bob")

	assert.Equal(t, "shelf:alice:session:token", alice.Key("token"))
	assert.Equal(t, "shelf:session:token", NewNamespacedStore(shared, " ").Key("token"))

	require.NoError(t, alice.SetMultiple(ctx, map[string][]byte{"token": []byte("a")}))
	require.NoError(t, bob.SetMultiple(ctx, map[string][]byte{"token": []byte("b")}))

	got, err := alice.GetMultiple(ctx, []string{"token"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"token": []byte("a")}, got)

	raw, err := shared.GetMultiple(ctx, []string{"shelf:bob:session:token"})
	require.NoError(t, err)
	assert.Equal(t, "b", string(raw["shelf:bob:session:token"]))

	require.NoError(t, alice.DeleteMultiple(ctx, []string{"token"}))
	got, err = alice.GetMultiple(ctx, []string{"token"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = bob.GetMultiple(ctx, []string{"token"})
	require.NoError(t, err)
	assert.Equal(t, "b", string(got["token"]))
}

func TestCacheError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewCacheError("failed to set multiple keys", true).WithError(cause)

	assert.Equal(t, "failed to set multiple keys: connection reset", err.Error())
	assert.True(t, err.IsRetryable())
	assert.ErrorIs(t, err, cause)

	closed := ErrStoreClosed.WithError(cause)
	assert.Nil(t, ErrStoreClosed.Underlying, "sentinel is not mutated")
	assert.False(t, closed.IsRetryable())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default file", func(c *Config) {}, false},
		{"memory", func(c *Config) { c.Backend = BackendMemory }, false},
		{"redis", func(c *Config) { c.Backend = BackendRedis }, false},
		{"postgres without url", func(c *Config) { c.Backend = BackendPostgres }, true},
		{"postgres with url", func(c *Config) {
			c.Backend = BackendPostgres
			c.PostgresURL = "postgres://u:p@localhost:5432/db"
		}, false},
		{"file without path", func(c *Config) { c.FilePath = "" }, true},
		{"unknown", func(c *Config) { c.Backend = "etcd" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SHELF_SESSION_BACKEND", "redis")
	t.Setenv("SHELF_SESSION_NAMESPACE", "warehouse")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("SHELF_SESSION_TTL", "3600")

	cfg, err := NewConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "warehouse", cfg.Namespace)
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddress())
	assert.Equal(t, "1h0m0s", cfg.SessionTTL.String())

	t.Setenv("REDIS_PORT", "not-a-port")
	_, err = NewConfigFromEnv()
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, &Config{Backend: BackendMemory})
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())

	dir := t.TempDir()
	store, err = Open(ctx, &Config{Backend: BackendFile, FilePath: filepath.Join(dir, "session.toml"), Namespace: "staging"})
	require.NoError(t, err)
	fileStore, ok := store.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "session.staging.toml"), fileStore.Path())

	_, err = Open(ctx, &Config{Backend: "etcd"})
	assert.Error(t, err)
}
