package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore fails every write
type failingStore struct {
	*MemoryStore
}

func (f failingStore) SetMultiple(ctx context.Context, items map[string][]byte) error {
	return errors.New("disk full")
}

// undeletableStore fails every delete
type undeletableStore struct {
	*MemoryStore
}

func (u undeletableStore) DeleteMultiple(ctx context.Context, keys []string) error {
	return errors.New("connection refused")
}

func TestSessionStore_ClearSurvivesBackendFailure(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(undeletableStore{NewMemoryStore()})
	require.NoError(t, store.Set(ctx, "stale", nil))
	gen := store.Snapshot().Generation()

	cleared, err := store.ClearIfCurrent(ctx, gen)
	assert.True(t, cleared)
	assert.ErrorContains(t, err, "connection refused")
	assert.False(t, store.Snapshot().Authenticated())
	assert.NotEqual(t, gen, store.Snapshot().Generation())

	cleared, _ = store.ClearIfCurrent(ctx, gen)
	assert.False(t, cleared)
}

func TestSessionStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	store := NewSessionStore(backend)
	require.NoError(t, store.Init(ctx))

	s, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())

	require.NoError(t, store.Set(ctx, "tok", json.RawMessage(`{"username":"alice"}`)))
	s, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", s.Token)
	assert.JSONEq(t, `{"username":"alice"}`, string(s.Profile))

	persisted, err := backend.GetMultiple(ctx, []string{SessionTokenKey, SessionProfileKey})
	require.NoError(t, err)
	assert.Equal(t, "tok", string(persisted[SessionTokenKey]))
	assert.JSONEq(t, `{"username":"alice"}`, string(persisted[SessionProfileKey]))

	require.NoError(t, store.Clear(ctx))
	s, err = store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.Profile)

	persisted, err = backend.GetMultiple(ctx, []string{SessionTokenKey, SessionProfileKey})
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestSessionStore_RejectsEmptyToken(t *testing.T) {
	store := NewSessionStore(nil)
	err := store.Set(context.Background(), "", json.RawMessage(`{"username":"alice"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConstruction))
	assert.False(t, store.Snapshot().Authenticated())
}

func TestSessionStore_InitRestoresPersistedSession(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	first := NewSessionStore(backend)
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.Set(ctx, "persisted", json.RawMessage(`{"id":1}`)))

	second := NewSessionStore(backend)
	require.NoError(t, second.Init(ctx))
	s := second.Snapshot()
	assert.Equal(t, "persisted", s.Token)
	assert.JSONEq(t, `{"id":1}`, string(s.Profile))
}

func TestSessionStore_InitDropsProfileWithoutToken(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	require.NoError(t, backend.SetMultiple(ctx, map[string][]byte{SessionProfileKey: []byte(`{"id":1}`)}))

	store := NewSessionStore(backend)
	require.NoError(t, store.Init(ctx))
	s := store.Snapshot()
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.Profile)
}

func TestSessionStore_NilProfile(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(nil)
	require.NoError(t, store.Set(ctx, "tok", nil))
	assert.Nil(t, store.Snapshot().Profile)
}

func TestSessionStore_FailedWriteKeepsPreviousSession(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	good := NewSessionStore(mem)
	require.NoError(t, good.Set(ctx, "old", nil))

	store := NewSessionStore(failingStore{mem})
	require.NoError(t, store.Init(ctx))
	require.Error(t, store.Set(ctx, "new", nil))
	assert.Equal(t, "old", store.Snapshot().Token)
}

func TestSessionStore_ClearIfCurrent(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(nil)
	require.NoError(t, store.Set(ctx, "tok", nil))
	gen := store.Snapshot().Generation()

	cleared, err := store.ClearIfCurrent(ctx, gen)
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = store.ClearIfCurrent(ctx, gen)
	require.NoError(t, err)
	assert.False(t, cleared, "second clear of the same generation is a no-op")

	require.NoError(t, store.Set(ctx, "fresh", nil))
	cleared, err = store.ClearIfCurrent(ctx, gen)
	require.NoError(t, err)
	assert.False(t, cleared, "a newer session is never cleared by a stale failure")
	assert.Equal(t, "fresh", store.Snapshot().Token)
}

func TestSessionStore_ConcurrentClearIfCurrent(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(nil)
	require.NoError(t, store.Set(ctx, "tok", nil))
	gen := store.Snapshot().Generation()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cleared, err := store.ClearIfCurrent(ctx, gen)
			assert.NoError(t, err)
			if cleared {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestSessionStore_ConcurrentReadsNeverSeeHalfSession(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = store.Set(ctx, "tok", json.RawMessage(`{"n":1}`))
			_ = store.Clear(ctx)
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
			s := store.Snapshot()
			if !s.Authenticated() {
				assert.Nil(t, s.Profile)
			} else {
				assert.NotNil(t, s.Profile)
			}
		}
	}
}
