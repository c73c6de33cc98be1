package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Keys under which the session is persisted. Both are written together and
// cleared together.
const (
	SessionTokenKey   = "token"
	SessionProfileKey = "user"
)

var sessionKeys = []string{SessionTokenKey, SessionProfileKey}

// KeyValueStore is the persistence behind a SessionStore. Implementations
// must apply SetMultiple and DeleteMultiple atomically; GetMultiple omits
// missing keys instead of failing.
type KeyValueStore interface {
	GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMultiple(ctx context.Context, items map[string][]byte) error
	DeleteMultiple(ctx context.Context, keys []string) error
}

// Session is the authentication state. A profile is only ever present
// together with a token.
type Session struct {
	Token   string
	Profile json.RawMessage

	generation uint64
}

// Authenticated reports whether a token is present
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Generation identifies the Set or Clear that produced this snapshot.
func (s Session) Generation() uint64 {
	return s.generation
}

// SessionStore holds the session in memory and mirrors it to a KeyValueStore.
// Reads are served from memory after Init; writes are serialized so no
// caller ever observes a token without the profile written alongside it.
type SessionStore struct {
	mu         sync.RWMutex
	backend    KeyValueStore
	current    Session
	generation uint64
}

// NewSessionStore creates a store over backend. Call Init to load any
// persisted session.
func NewSessionStore(backend KeyValueStore) *SessionStore {
	if backend == nil {
		backend = NewMemoryStore()
	}
	return &SessionStore{backend: backend}
}

// Init loads the persisted session. A persisted profile without a token is
// discarded.
func (s *SessionStore) Init(ctx context.Context) error {
	values, err := s.backend.GetMultiple(ctx, sessionKeys)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.current = Session{generation: s.generation}
	token := string(values[SessionTokenKey])
	if token == "" {
		return nil
	}
	s.current.Token = token
	s.current.Profile = decodeProfile(values[SessionProfileKey])
	return nil
}

// Get returns the current session snapshot.
func (s *SessionStore) Get(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	return s.Snapshot(), nil
}

// Snapshot returns the current session without a context.
func (s *SessionStore) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set persists a new session. An empty token is rejected; profile may be nil.
func (s *SessionStore) Set(ctx context.Context, token string, profile json.RawMessage) error {
	if token == "" {
		return NewError(FailureConstruction, "cannot store a session without a token")
	}
	stored := encodeProfile(profile)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.SetMultiple(ctx, map[string][]byte{
		SessionTokenKey:   []byte(token),
		SessionProfileKey: stored,
	}); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.generation++
	s.current = Session{Token: token, Profile: decodeProfile(stored), generation: s.generation}
	return nil
}

// Clear removes the session.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// ClearIfCurrent clears the session only if it is still the one identified
// by generation. It reports whether this call performed the clear, so that
// concurrent failures of the same session trigger recovery once. The clear
// counts even when the backend delete fails; that error is returned too.
func (s *SessionStore) ClearIfCurrent(ctx context.Context, generation uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation || !s.current.Authenticated() {
		return false, nil
	}
	return true, s.clearLocked(ctx)
}

// clearLocked drops the in-memory session before touching the backend, so a
// failed delete never leaves the rejected token in use. The returned error
// only reports that the persisted copy may survive.
func (s *SessionStore) clearLocked(ctx context.Context) error {
	s.generation++
	s.current = Session{generation: s.generation}
	if err := s.backend.DeleteMultiple(ctx, sessionKeys); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func encodeProfile(profile json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(profile)
	if len(trimmed) == 0 {
		return []byte("null")
	}
	return append([]byte(nil), trimmed...)
}

func decodeProfile(stored []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(stored)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || !json.Valid(trimmed) {
		return nil
	}
	return json.RawMessage(append([]byte(nil), trimmed...))
}

// MemoryStore is a non-durable KeyValueStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// GetMultiple returns the values present for keys
func (m *MemoryStore) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := m.data[key]; ok {
			result[key] = append([]byte(nil), v...)
		}
	}
	return result, nil
}

// SetMultiple stores all items
func (m *MemoryStore) SetMultiple(ctx context.Context, items map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, v := range items {
		m.data[key] = append([]byte(nil), v...)
	}
	return nil
}

// DeleteMultiple removes all keys
func (m *MemoryStore) DeleteMultiple(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}
