package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/birbparty/shelf/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.toml")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))

	got, err := store.GetMultiple(ctx, []string{"token", "user"})
	require.NoError(t, err)
	assert.Empty(t, got, "missing file reads as empty")

	require.NoError(t, store.SetMultiple(ctx, map[string][]byte{
		"token": []byte("abc"),
		"user":  []byte(`{"name":"alice","quote":"it's \"fine\""}`),
	}))

	got, err = store.GetMultiple(ctx, []string{"token", "user", "other"})
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got["token"]))
	assert.JSONEq(t, `{"name":"alice","quote":"it's \"fine\""}`, string(got["user"]))
	assert.NotContains(t, got, "other")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.DeleteMultiple(ctx, []string{"token", "user"}))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file removed when empty")
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.toml")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SetMultiple(ctx, map[string][]byte{"token": []byte("persisted")}))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := second.GetMultiple(ctx, []string{"token"})
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got["token"]))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = store.GetMultiple(context.Background(), []string{"token"})
	assert.Error(t, err)
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "session.toml"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.SetMultiple(ctx, map[string][]byte{
				"token": []byte("t"),
				"user":  []byte(`{"n":1}`),
			}))
		}(i)
	}
	wg.Wait()

	got, err := store.GetMultiple(ctx, []string{"token", "user"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFileStore_BacksSessionStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.toml")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	session := sdk.NewSessionStore(store)
	require.NoError(t, session.Init(ctx))
	require.NoError(t, session.Set(ctx, "tok", []byte(`{"username":"alice"}`)))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	restored := sdk.NewSessionStore(reopened)
	require.NoError(t, restored.Init(ctx))
	assert.Equal(t, "tok", restored.Snapshot().Token)
	assert.JSONEq(t, `{"username":"alice"}`, string(restored.Snapshot().Profile))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/.config/shelf/session.toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "shelf", "session.toml"), got)

	_, err = expandPath("  ")
	assert.Error(t, err)
}
