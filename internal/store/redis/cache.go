// Package redis caches the latest indicator snapshot per symbol so the
// status API can answer without waiting for the next evaluation tick.
//
// The cache is best-effort: every Redis failure is logged and treated
// as a miss, and the engine recomputes from history as usual.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const keyPrefix = "ind:latest:"

// Config configures the Redis connection and cache policy.
type Config struct {
	Addr     string        // e.g. "localhost:6379"
	Password string        // empty for no auth
	DB       int           // redis database number
	TTL      time.Duration // entry lifetime; align with the data freshness window
}

// Cache stores serialized indicator snapshots keyed by symbol.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// Client returns the underlying client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis cache connected", "addr", cfg.Addr, "ttl", cfg.TTL)
	return &Cache{client: client, ttl: cfg.TTL}, nil
}

// Get returns the cached snapshot for symbol, or false on miss. Errors
// count as misses.
func (c *Cache) Get(ctx context.Context, symbol string) ([]byte, bool) {
	data, err := c.client.Get(ctx, keyPrefix+symbol).Bytes()
	if err == goredis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("redis get failed", "symbol", symbol, "error", err)
		return nil, false
	}
	return data, true
}

// Put stores the snapshot for symbol with the configured TTL. Failures
// are logged and dropped.
func (c *Cache) Put(ctx context.Context, symbol string, data []byte) {
	if err := c.client.Set(ctx, keyPrefix+symbol, data, c.ttl).Err(); err != nil {
		slog.Warn("redis set failed", "symbol", symbol, "error", err)
	}
}

// Close releases the client connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
