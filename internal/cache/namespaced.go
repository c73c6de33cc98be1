package cache

import (
	"context"
	"strings"
)

const (
	// Separator is the delimiter used in key construction
	Separator = ":"
	// Prefix is the root of every namespaced key
	Prefix = "shelf"
)

// NamespacedStore wraps a Store so that several profiles can share one
// backend. Keys are stored as shelf:{namespace}:session:{key}.
type NamespacedStore struct {
	store     Store
	namespace string
}

// NewNamespacedStore creates a namespaced wrapper around store
func NewNamespacedStore(store Store, namespace string) *NamespacedStore {
	return &NamespacedStore{
		store:     store,
		namespace: strings.TrimSpace(namespace),
	}
}

// Key returns the backend key for a session key
func (n *NamespacedStore) Key(key string) string {
	if n.namespace == "" {
		return strings.Join([]string{Prefix, "session", key}, Separator)
	}
	return strings.Join([]string{Prefix, n.namespace, "session", key}, Separator)
}

// GetMultiple retrieves values and maps them back to the caller's keys
func (n *NamespacedStore) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	scoped := make([]string, len(keys))
	original := make(map[string]string, len(keys))
	for i, key := range keys {
		scoped[i] = n.Key(key)
		original[scoped[i]] = key
	}

	results, err := n.store.GetMultiple(ctx, scoped)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(results))
	for scopedKey, value := range results {
		if key, ok := original[scopedKey]; ok {
			out[key] = value
		}
	}
	return out, nil
}

// SetMultiple stores items under namespaced keys
func (n *NamespacedStore) SetMultiple(ctx context.Context, items map[string][]byte) error {
	scoped := make(map[string][]byte, len(items))
	for key, value := range items {
		scoped[n.Key(key)] = value
	}
	return n.store.SetMultiple(ctx, scoped)
}

// DeleteMultiple removes namespaced keys
func (n *NamespacedStore) DeleteMultiple(ctx context.Context, keys []string) error {
	scoped := make([]string, len(keys))
	for i, key := range keys {
		scoped[i] = n.Key(key)
	}
	return n.store.DeleteMultiple(ctx, scoped)
}

// Ping checks the underlying store
func (n *NamespacedStore) Ping(ctx context.Context) error {
	return n.store.Ping(ctx)
}

// Close closes the underlying store
func (n *NamespacedStore) Close() error {
	return n.store.Close()
}
