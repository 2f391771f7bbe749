package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SaveCartSnapshot replaces the mirrored cart hash with the given
// product-id -> quantity entries.
func (c *Client) SaveCartSnapshot(ctx context.Context, sessionID string, entries map[string]int) error {
	key := fmt.Sprintf("cart:%s", sessionID)

	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, key)
	for productID, quantity := range entries {
		pipe.HSet(ctx, key, productID, quantity)
	}
	pipe.Expire(ctx, key, 24*time.Hour)

	_, err := pipe.Exec(ctx)
	return err
}

// LoadCartSnapshot retrieves the mirrored cart entries.
func (c *Client) LoadCartSnapshot(ctx context.Context, sessionID string) (map[string]int, error) {
	key := fmt.Sprintf("cart:%s", sessionID)

	result, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	entries := make(map[string]int, len(result))
	for productID, raw := range result {
		quantity, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt cart mirror for %s: %w", sessionID, err)
		}
		entries[productID] = quantity
	}
	return entries, nil
}

// ClearCart removes the mirrored cart.
func (c *Client) ClearCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("cart:%s", sessionID)).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
