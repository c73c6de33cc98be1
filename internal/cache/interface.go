// Package cache provides durable backends for the client's session store.
package cache

import (
	"context"

	"github.com/birbparty/shelf/sdk"
)

// Store is a sdk.KeyValueStore with a connection lifecycle.
type Store interface {
	sdk.KeyValueStore

	// Ping checks if the backend is healthy
	Ping(ctx context.Context) error

	// Close releases the backend connection
	Close() error
}

// Common errors
var (
	ErrStoreClosed = NewCacheError("store is closed", false)
)

// CacheError represents a backend-specific error
type CacheError struct {
	Message    string
	Retryable  bool
	Underlying error
}

// NewCacheError creates a new cache error
func NewCacheError(message string, retryable bool) *CacheError {
	return &CacheError{
		Message:   message,
		Retryable: retryable,
	}
}

// Error implements the error interface
func (e *CacheError) Error() string {
	if e.Underlying != nil {
		return e.Message + ": " + e.Underlying.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *CacheError) Unwrap() error {
	return e.Underlying
}

// WithError returns a copy of e carrying err
func (e *CacheError) WithError(err error) *CacheError {
	c := *e
	c.Underlying = err
	return &c
}

// IsRetryable returns whether the error is retryable
func (e *CacheError) IsRetryable() bool {
	return e.Retryable
}

// memoryStore adds a no-op lifecycle to sdk.MemoryStore
type memoryStore struct {
	*sdk.MemoryStore
}

// NewMemoryStore returns a process-local Store
func NewMemoryStore() Store {
	return memoryStore{sdk.NewMemoryStore()}
}

func (memoryStore) Ping(ctx context.Context) error { return nil }

func (memoryStore) Close() error { return nil }
