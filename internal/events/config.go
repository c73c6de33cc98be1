package events

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds NATS settings for session events and UI navigation
type Config struct {
	// NATS connection settings
	URL      string
	Name     string
	User     string
	Password string

	// JetStream settings for the session event stream
	StreamName     string
	StreamMaxAge   time.Duration
	StreamMaxMsgs  int64
	StreamReplicas int

	// DisableStream publishes session events on core NATS only
	DisableStream bool

	// PublishTimeout bounds how long an observer waits for a publish ack
	PublishTimeout time.Duration
}

// DefaultConfig returns settings for a local NATS server
func DefaultConfig() *Config {
	return &Config{
		URL:            "nats://localhost:4222",
		Name:           "shelf",
		StreamName:     "SHELF_SESSIONS",
		StreamMaxAge:   7 * 24 * time.Hour,
		StreamMaxMsgs:  100000,
		StreamReplicas: 1,
		PublishTimeout: 2 * time.Second,
	}
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	cfg.URL = getEnvOrDefault("SHELF_NATS_URL", cfg.URL)
	cfg.Name = getEnvOrDefault("NATS_NAME", cfg.Name)
	cfg.User = os.Getenv("NATS_USER")
	cfg.Password = os.Getenv("NATS_PASSWORD")
	cfg.StreamName = getEnvOrDefault("SHELF_NATS_STREAM", cfg.StreamName)

	streamReplicas, err := strconv.Atoi(getEnvOrDefault("NATS_STREAM_REPLICAS", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid NATS_STREAM_REPLICAS: %w", err)
	}
	cfg.StreamReplicas = streamReplicas

	streamMaxMsgs, err := strconv.ParseInt(getEnvOrDefault("NATS_STREAM_MAX_MSGS", "100000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NATS_STREAM_MAX_MSGS: %w", err)
	}
	cfg.StreamMaxMsgs = streamMaxMsgs

	publishTimeout, err := time.ParseDuration(getEnvOrDefault("SHELF_NATS_PUBLISH_TIMEOUT", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHELF_NATS_PUBLISH_TIMEOUT: %w", err)
	}
	cfg.PublishTimeout = publishTimeout

	disable, err := strconv.ParseBool(getEnvOrDefault("SHELF_NATS_DISABLE_STREAM", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHELF_NATS_DISABLE_STREAM: %w", err)
	}
	cfg.DisableStream = disable

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
