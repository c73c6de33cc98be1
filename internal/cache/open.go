package cache

import (
	"context"
	"fmt"
	"strings"
)

// Open returns the Store selected by cfg.Backend
func Open(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		path := cfg.FilePath
		if cfg.Namespace != "default" {
			path = namespacedPath(path, cfg.Namespace)
		}
		return NewFileStore(path)
	case BackendRedis:
		store, err := NewRedisStore(cfg)
		if err != nil {
			return nil, err
		}
		return NewNamespacedStore(store, cfg.Namespace), nil
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}

// namespacedPath turns session.toml into session.<namespace>.toml
func namespacedPath(path, namespace string) string {
	if strings.HasSuffix(path, ".toml") {
		return strings.TrimSuffix(path, ".toml") + "." + namespace + ".toml"
	}
	return path + "." + namespace
}
