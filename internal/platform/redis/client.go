package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"fiscus/internal/platform/config"
)

// Client is a go-redis connection whose keys live under one namespace.
type Client struct {
	*redis.Client
	prefix string
}

// New connects to Redis and pings it once.
// Returns nil if the URL is empty (Redis not configured).
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return Wrap(client, cfg.KeyPrefix), nil
}

// Wrap binds an open connection to a key namespace. An empty prefix leaves
// keys unqualified.
func Wrap(client *redis.Client, prefix string) *Client {
	return &Client{Client: client, prefix: strings.Trim(prefix, ":")}
}

// Key joins the namespace and parts with colons: Key("record", "c1") is
// "fiscus:record:c1" under the "fiscus" namespace.
func (c *Client) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Health reports whether the connection answers a PING.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
