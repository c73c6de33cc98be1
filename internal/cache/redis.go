package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session in Redis. Multi-key writes and deletes run
// in a MULTI/EXEC transaction so the token and profile change together.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis store and checks the connection
func NewRedisStore(config *Config) (*RedisStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:            config.RedisAddress(),
		Password:        config.RedisPassword,
		DB:              config.RedisDB,
		MaxRetries:      config.MaxRetries,
		MinRetryBackoff: config.MinRetryBackoff,
		MaxRetryBackoff: config.MaxRetryBackoff,
		DialTimeout:     config.DialTimeout,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		PoolSize:        config.PoolSize,
		MinIdleConns:    config.MinIdleConns,
		ConnMaxIdleTime: config.MaxIdleTime,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, config.SessionTTL), nil
}

// NewRedisStoreFromClient wraps an existing client. A zero ttl keeps keys
// until they are deleted.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// GetMultiple retrieves the values that exist among keys
func (r *RedisStore) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	// Use MGET for batch retrieval
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, NewCacheError("failed to get multiple keys", true).WithError(err)
	}

	result := make(map[string][]byte)
	for i, val := range values {
		if strVal, ok := val.(string); ok {
			result[keys[i]] = []byte(strVal)
		}
	}

	return result, nil
}

// SetMultiple stores all items in one transaction
func (r *RedisStore) SetMultiple(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range items {
			pipe.Set(ctx, key, value, r.ttl)
		}
		return nil
	})
	if err != nil {
		return NewCacheError("failed to set multiple keys", true).WithError(err)
	}

	return nil
}

// DeleteMultiple removes keys; missing keys are ignored
func (r *RedisStore) DeleteMultiple(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return NewCacheError("failed to delete multiple keys", true).WithError(err)
	}

	return nil
}

// Ping checks if Redis is healthy
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return NewCacheError("ping failed", false).WithError(err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Stats returns Redis connection pool stats
func (r *RedisStore) Stats() *redis.PoolStats {
	if r.client != nil {
		return r.client.PoolStats()
	}
	return nil
}

// TTL returns the remaining time to live of a key, zero when it has none
func (r *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, NewCacheError("failed to get TTL", true).WithError(err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
