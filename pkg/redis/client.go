package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/krxvalue/pkg/config"
)

const (
	dialTimeout = 3 * time.Second
	ioTimeout   = 2 * time.Second
)

// Client is an optional Redis connection. The zero/disabled client answers
// Enabled() == false and every Cache operation on it is a no-op.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb *redis.Client
}

// New connects when REDIS_ENABLED is set and pings once to fail fast
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", rdb.Options().Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Close releases the connection pool; safe on a disabled client
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Enabled reports whether a live connection backs this client
func (c *Client) Enabled() bool {
	return c.rdb != nil
}

// Redis exposes the go-redis client (nil when disabled)
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Ping is the /health check
func (c *Client) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
