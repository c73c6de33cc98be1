package cleanup

import (
	"os"
	"strconv"
	"time"
)

// LoadConfig loads retention settings from environment variables
func LoadConfig() Config {
	return Config{
		Retention: getEnvDuration("SHELF_ARCHIVE_RETENTION", 30*24*time.Hour),
		Interval:  getEnvDuration("SHELF_ARCHIVE_PRUNE_INTERVAL", time.Hour),
		DryRun:    getEnvBool("SHELF_ARCHIVE_PRUNE_DRY_RUN", false),
	}
}

// getEnvBool gets a boolean value from environment or returns default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment or returns default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
