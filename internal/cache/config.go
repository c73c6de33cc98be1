package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Backend names accepted by Config.Backend
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config selects and configures the session backend
type Config struct {
	// Backend is one of memory, file, redis or postgres
	Backend string
	// Namespace separates sessions of different profiles sharing a backend
	Namespace string

	// File backend
	FilePath string

	// Redis connection settings
	RedisHost       string
	RedisPort       int
	RedisPassword   string
	RedisDB         int
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	MaxIdleTime     time.Duration
	// SessionTTL expires stored sessions in Redis; zero keeps them until cleared
	SessionTTL time.Duration

	// Postgres connection settings
	PostgresURL     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a file-backed configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:         BackendFile,
		Namespace:       "default",
		FilePath:        DefaultSessionPath(),
		RedisHost:       "localhost",
		RedisPort:       6379,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    1,
		MaxIdleTime:     5 * time.Minute,
		MaxConns:        4,
		MinConns:        0,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	cfg.Backend = getEnvOrDefault("SHELF_SESSION_BACKEND", cfg.Backend)
	cfg.Namespace = getEnvOrDefault("SHELF_SESSION_NAMESPACE", cfg.Namespace)
	cfg.FilePath = getEnvOrDefault("SHELF_SESSION_FILE", cfg.FilePath)

	port, err := strconv.Atoi(getEnvOrDefault("REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.RedisPort = port

	db, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = db

	poolSize, err := strconv.Atoi(getEnvOrDefault("REDIS_POOL_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}
	cfg.PoolSize = poolSize

	ttl, err := parseDuration(getEnvOrDefault("SHELF_SESSION_TTL", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHELF_SESSION_TTL: %w", err)
	}
	cfg.SessionTTL = ttl

	maxConns, err := strconv.ParseInt(getEnvOrDefault("POSTGRES_MAX_CONNS", "4"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_MAX_CONNS: %w", err)
	}
	cfg.MaxConns = int32(maxConns)

	cfg.RedisHost = getEnvOrDefault("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.PostgresURL = os.Getenv("SHELF_POSTGRES_URL")

	return cfg, cfg.Validate()
}

// Validate checks that the selected backend has what it needs
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if c.FilePath == "" {
			return fmt.Errorf("file session backend requires a path")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres session backend requires SHELF_POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Backend)
	}
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	return nil
}

// RedisAddress returns the Redis server address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DefaultSessionPath returns ~/.config/shelf/session.toml, falling back to
// the working directory when no config directory is known.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shelf-session.toml"
	}
	return filepath.Join(dir, "shelf", "session.toml")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string) (time.Duration, error) {
	// Try parsing as a duration string (e.g., "1h30m")
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	// Try parsing as seconds
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}
