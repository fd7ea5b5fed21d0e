// Package redis wraps Redis operations for leader election and the
// operational alert queue.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks the Redis connection.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func leaderKey(chainID string) string {
	return fmt.Sprintf("settler:leader:%s", chainID)
}

// AcquireLeader attempts to take the reconciliation leader lock for a
// chain. At most one engine instance may hold it at a time.
func (c *Client) AcquireLeader(ctx context.Context, chainID, instanceID string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, leaderKey(chainID), instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// RefreshLeader extends the leader lock iff this instance still holds it.
func (c *Client) RefreshLeader(ctx context.Context, chainID, instanceID string, ttl time.Duration) (bool, error) {
	// Compare-and-expire so a lock stolen after a pause is not refreshed.
	const script = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0`
	res, err := c.rdb.Eval(ctx, script, []string{leaderKey(chainID)}, instanceID, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("refresh lock failed: %w", err)
	}
	return res == 1, nil
}

// ReleaseLeader drops the leader lock iff this instance holds it.
func (c *Client) ReleaseLeader(ctx context.Context, chainID, instanceID string) error {
	const script = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0`
	return c.rdb.Eval(ctx, script, []string{leaderKey(chainID)}, instanceID).Err()
}
