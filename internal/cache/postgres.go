package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSessionTable = `
	CREATE TABLE IF NOT EXISTS session_kv (
		namespace  TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		value      BYTEA       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (namespace, key)
	)
`

// PostgresStore keeps the session in a session_kv table. Every multi-key
// write or delete runs in one transaction.
type PostgresStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresStore connects to Postgres and creates the session table
func NewPostgresStore(ctx context.Context, config *Config) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	poolConfig.MaxConnLifetime = config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = 30 * time.Second

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createSessionTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create session table: %w", err)
	}

	return &PostgresStore{pool: pool, namespace: config.Namespace}, nil
}

// GetMultiple retrieves the values that exist among keys
func (p *PostgresStore) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	if len(keys) == 0 {
		return result, nil
	}

	rows, err := p.pool.Query(ctx,
		`SELECT key, value FROM session_kv WHERE namespace = $1 AND key = ANY($2)`,
		p.namespace, keys)
	if err != nil {
		return nil, NewCacheError("failed to get multiple keys", true).WithError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, NewCacheError("failed to scan session row", false).WithError(err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, NewCacheError("failed to read session rows", true).WithError(err)
	}

	return result, nil
}

// SetMultiple upserts all items in one transaction
func (p *PostgresStore) SetMultiple(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for key, value := range items {
			batch.Queue(`
				INSERT INTO session_kv (namespace, key, value)
				VALUES ($1, $2, $3)
				ON CONFLICT (namespace, key) DO UPDATE SET
					value = EXCLUDED.value,
					updated_at = CURRENT_TIMESTAMP
			`, p.namespace, key, value)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return NewCacheError("failed to set multiple keys", true).WithError(err)
	}

	return nil
}

// DeleteMultiple removes keys in one statement
func (p *PostgresStore) DeleteMultiple(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := p.pool.Exec(ctx,
		`DELETE FROM session_kv WHERE namespace = $1 AND key = ANY($2)`,
		p.namespace, keys)
	if err != nil {
		return NewCacheError("failed to delete multiple keys", true).WithError(err)
	}

	return nil
}

// Ping checks the database health
func (p *PostgresStore) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return NewCacheError("ping failed", false).WithError(err)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// Stats returns pool statistics
func (p *PostgresStore) Stats() *pgxpool.Stat {
	return p.pool.Stat()
}
