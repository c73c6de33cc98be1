package backend

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Login response layouts
const (
	LoginShapeFlat   = "flat"   // {"token": ..., "user": {...}}
	LoginShapeNested = "nested" // {"code": 200, "data": {"token": ..., ...}}
)

// Config holds the reference backend configuration
type Config struct {
	// Server configuration
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	// CORS configuration
	AllowOrigins string

	// Auth configuration
	TokenSecret string
	TokenTTL    time.Duration
	LoginShape  string

	// Catalogue configuration
	SeedProducts bool

	MetricsPath string
}

// DefaultConfig returns the configuration used by tests and local runs
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            3001,
		ShutdownTimeout: 10 * time.Second,
		AllowOrigins:    "http://localhost:3000",
		TokenTTL:        24 * time.Hour,
		LoginShape:      LoginShapeFlat,
		SeedProducts:    true,
		MetricsPath:     "/metrics",
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	port, err := strconv.Atoi(getEnvOrDefault("SHELF_BACKEND_PORT", strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("invalid SHELF_BACKEND_PORT: %w", err)
	}

	shutdownTimeout, err := time.ParseDuration(getEnvOrDefault("SHELF_BACKEND_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid SHELF_BACKEND_SHUTDOWN_TIMEOUT: %w", err)
	}

	tokenTTL, err := time.ParseDuration(getEnvOrDefault("SHELF_BACKEND_TOKEN_TTL", cfg.TokenTTL.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid SHELF_BACKEND_TOKEN_TTL: %w", err)
	}

	seed, err := strconv.ParseBool(getEnvOrDefault("SHELF_BACKEND_SEED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHELF_BACKEND_SEED: %w", err)
	}

	cfg.Host = getEnvOrDefault("SHELF_BACKEND_HOST", cfg.Host)
	cfg.Port = port
	cfg.ShutdownTimeout = shutdownTimeout
	cfg.AllowOrigins = getEnvOrDefault("SHELF_BACKEND_ALLOW_ORIGINS", cfg.AllowOrigins)
	cfg.TokenSecret = os.Getenv("SHELF_BACKEND_TOKEN_SECRET")
	cfg.TokenTTL = tokenTTL
	cfg.LoginShape = strings.ToLower(getEnvOrDefault("SHELF_BACKEND_LOGIN_SHAPE", cfg.LoginShape))
	cfg.SeedProducts = seed
	cfg.MetricsPath = getEnvOrDefault("METRICS_PATH", cfg.MetricsPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	switch c.LoginShape {
	case LoginShapeFlat, LoginShapeNested:
	default:
		return fmt.Errorf("unknown login shape %q", c.LoginShape)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// allowCredentials reports whether CORS may allow credentials. Browsers
// reject credentials on a wildcard origin.
func (c *Config) allowCredentials() bool {
	for _, origin := range strings.Split(c.AllowOrigins, ",") {
		if strings.TrimSpace(origin) == "*" {
			return false
		}
	}
	return true
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
