// Package config loads the shelf CLI configuration from an optional TOML
// file overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/shelf/internal/cache"
	"github.com/birbparty/shelf/sdk"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	defaultConfigPath = "~/.config/shelf/config.toml"
	developmentURL    = "http://localhost:8080"
)

// Config is the resolved CLI configuration
type Config struct {
	Environment string
	BaseURL     string
	Timeout     time.Duration
	Retries     int
	RetryDelay  time.Duration
	LoginPath   string
	Headers     map[string]string

	Session *cache.Config

	// NATSURL enables session events and navigation over NATS when set
	NATSURL string
	// PushgatewayURL receives the run's metrics when pushing is requested
	PushgatewayURL string

	// Path is the file the configuration was read from, empty when none
	Path string
}

// fileConfig mirrors the TOML layout
type fileConfig struct {
	Environment string            `toml:"environment"`
	BaseURL     string            `toml:"base_url"`
	Timeout     string            `toml:"timeout"`
	Retries     *int              `toml:"retries"`
	RetryDelay  string            `toml:"retry_delay"`
	LoginPath   string            `toml:"login_path"`
	Headers     map[string]string `toml:"headers"`

	Session struct {
		Backend     string `toml:"backend"`
		Namespace   string `toml:"namespace"`
		File        string `toml:"file"`
		RedisHost   string `toml:"redis_host"`
		RedisPort   int    `toml:"redis_port"`
		RedisDB     int    `toml:"redis_db"`
		TTL         string `toml:"ttl"`
		PostgresURL string `toml:"postgres_url"`
	} `toml:"session"`

	Events struct {
		NATSURL string `toml:"nats_url"`
	} `toml:"events"`

	Metrics struct {
		PushgatewayURL string `toml:"pushgateway_url"`
	} `toml:"metrics"`
}

// Default returns the development configuration
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Timeout:     15 * time.Second,
		Retries:     0,
		RetryDelay:  time.Second,
		LoginPath:   sdk.DefaultLoginPath,
		Headers:     make(map[string]string),
		Session:     cache.DefaultConfig(),
	}
}

// Load reads the TOML file at path, or ~/.config/shelf/config.toml when
// path is empty, then applies environment overrides. A missing file at the
// default location is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		if err := cfg.applyFile(file); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
		cfg.Path = resolved
	case errors.Is(err, os.ErrNotExist) && strings.TrimSpace(path) == "":
		logrus.WithField("path", resolved).Debug("No config file, using defaults")
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v := strings.TrimSpace(raw.Environment); v != "" {
		c.Environment = v
	}
	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		c.BaseURL = v
	}
	if raw.Timeout != "" {
		if c.Timeout, err = time.ParseDuration(raw.Timeout); err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
	}
	if raw.Retries != nil {
		c.Retries = *raw.Retries
	}
	if raw.RetryDelay != "" {
		if c.RetryDelay, err = time.ParseDuration(raw.RetryDelay); err != nil {
			return fmt.Errorf("invalid retry_delay: %w", err)
		}
	}
	if v := strings.TrimSpace(raw.LoginPath); v != "" {
		c.LoginPath = v
	}
	for k, v := range raw.Headers {
		c.Headers[k] = v
	}

	s := raw.Session
	if s.Backend != "" {
		c.Session.Backend = s.Backend
	}
	if s.Namespace != "" {
		c.Session.Namespace = s.Namespace
	}
	if s.File != "" {
		c.Session.FilePath = mustExpand(s.File)
	}
	if s.RedisHost != "" {
		c.Session.RedisHost = s.RedisHost
	}
	if s.RedisPort != 0 {
		c.Session.RedisPort = s.RedisPort
	}
	c.Session.RedisDB = s.RedisDB
	if s.TTL != "" {
		if c.Session.SessionTTL, err = time.ParseDuration(s.TTL); err != nil {
			return fmt.Errorf("invalid session.ttl: %w", err)
		}
	}
	if s.PostgresURL != "" {
		c.Session.PostgresURL = s.PostgresURL
	}

	c.NATSURL = strings.TrimSpace(raw.Events.NATSURL)
	c.PushgatewayURL = strings.TrimSpace(raw.Metrics.PushgatewayURL)
	return nil
}

func (c *Config) applyEnv() error {
	c.Environment = getEnvOrDefault("SHELF_ENV", c.Environment)
	c.BaseURL = getEnvOrDefault("SHELF_BASE_URL", c.BaseURL)
	c.LoginPath = getEnvOrDefault("SHELF_LOGIN_PATH", c.LoginPath)
	c.NATSURL = getEnvOrDefault("SHELF_NATS_URL", c.NATSURL)
	c.PushgatewayURL = getEnvOrDefault("SHELF_PUSHGATEWAY_URL", c.PushgatewayURL)

	var err error
	if v := os.Getenv("SHELF_TIMEOUT"); v != "" {
		if c.Timeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid SHELF_TIMEOUT: %w", err)
		}
	}
	if v := os.Getenv("SHELF_RETRIES"); v != "" {
		if c.Retries, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid SHELF_RETRIES: %w", err)
		}
	}
	if v := os.Getenv("SHELF_RETRY_DELAY"); v != "" {
		if c.RetryDelay, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid SHELF_RETRY_DELAY: %w", err)
		}
	}

	// Session backend
	c.Session.Backend = getEnvOrDefault("SHELF_SESSION_BACKEND", c.Session.Backend)
	c.Session.Namespace = getEnvOrDefault("SHELF_SESSION_NAMESPACE", c.Session.Namespace)
	c.Session.FilePath = getEnvOrDefault("SHELF_SESSION_FILE", c.Session.FilePath)
	c.Session.RedisHost = getEnvOrDefault("REDIS_HOST", c.Session.RedisHost)
	c.Session.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", c.Session.RedisPassword)
	c.Session.PostgresURL = getEnvOrDefault("SHELF_POSTGRES_URL", c.Session.PostgresURL)
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if c.Session.RedisPort, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
	}
	if v := os.Getenv("SHELF_SESSION_TTL"); v != "" {
		if c.Session.SessionTTL, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid SHELF_SESSION_TTL: %w", err)
		}
	}
	return nil
}

// Validate resolves the base URL for the environment and checks the rest
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment:
		if c.BaseURL == "" {
			c.BaseURL = developmentURL
		}
	case EnvProduction:
		if c.BaseURL == "" {
			return fmt.Errorf("production environment requires base_url or SHELF_BASE_URL")
		}
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}
	return c.Session.Validate()
}

// SDKConfig builds the client configuration. Navigator, observer and
// session backend are wired by the caller.
func (c *Config) SDKConfig() *sdk.Config {
	cfg := sdk.DefaultConfig().
		WithBaseURL(c.BaseURL).
		WithTimeout(c.Timeout).
		WithRetries(c.Retries).
		WithRetryDelay(c.RetryDelay).
		WithLoginPath(c.LoginPath)
	for k, v := range c.Headers {
		cfg = cfg.WithHeader(k, v)
	}
	return cfg
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
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

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
