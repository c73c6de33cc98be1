package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// sessionFile is the on-disk layout of a FileStore
type sessionFile struct {
	Values map[string]string `toml:"values"`
}

// FileStore keeps the session in a TOML file. Every write replaces the file
// through a rename, so readers see either the old or the new session.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store at path. A leading ~ is expanded.
func NewFileStore(path string) (*FileStore, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve session path: %w", err)
	}
	return &FileStore{path: resolved}, nil
}

// Path returns the resolved file path
func (f *FileStore) Path() string {
	return f.path
}

// GetMultiple returns the stored values among keys
func (f *FileStore) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := values[key]; ok {
			result[key] = []byte(v)
		}
	}
	return result, nil
}

// SetMultiple stores items together
func (f *FileStore) SetMultiple(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	for key, value := range items {
		values[key] = string(value)
	}
	return f.save(values)
}

// DeleteMultiple removes keys together
func (f *FileStore) DeleteMultiple(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(values, key)
	}
	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	return f.save(values)
}

// Ping checks that the session directory is usable
func (f *FileStore) Ping(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return NewCacheError("session directory unavailable", false).WithError(err)
	}
	return nil
}

// Close is a no-op
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var file sessionFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if file.Values == nil {
		file.Values = make(map[string]string)
	}
	return file.Values, nil
}

func (f *FileStore) save(values map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := toml.Marshal(sessionFile{Values: values})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.toml")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
