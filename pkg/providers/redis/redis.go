// Package redis exposes a Redis server as a provider.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/morezero/invocation-gateway/pkg/provider"
)

const (
	Name    = "redis"
	Version = "1.0.0"
)

// Client wraps the shared go-redis client for one invocation.
type Client struct {
	rdb goredis.UniversalClient
}

// Close is a no-op; the shared client is closed by its owner.
func (c *Client) Close() error { return nil }

// NewClient parses a redis:// URL into a go-redis client.
func NewClient(redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis:provider - failed to parse REDIS_URL: %w", err)
	}
	return goredis.NewClient(opts), nil
}

// New returns the redis provider backed by rdb.
func New(rdb goredis.UniversalClient) *provider.Provider {
	return &provider.Provider{
		Name:        Name,
		Version:     Version,
		Description: "Redis key/value commands",
		New: func(_ context.Context, _ provider.Config) (provider.Client, error) {
			if rdb == nil {
				return nil, errors.New("redis: client not configured")
			}
			return &Client{rdb: rdb}, nil
		},
		Operations: map[string]provider.Operation{
			"get":  provider.Bind(get),
			"set":  provider.Bind(set),
			"del":  provider.Bind(del),
			"ping": provider.Bind(ping),
		},
	}
}

// KeyInput names one key.
type KeyInput struct {
	Key string `json:"key"`
}

// GetOutput is the get response. Found is false when the key does not exist.
type GetOutput struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Found bool   `json:"found"`
}

func get(ctx context.Context, c *Client, in KeyInput) (interface{}, error) {
	if in.Key == "" {
		return nil, errors.New("redis: key is required")
	}
	val, err := c.rdb.Get(ctx, in.Key).Result()
	if errors.Is(err, goredis.Nil) {
		return GetOutput{Key: in.Key}, nil
	}
	if err != nil {
		return nil, err
	}
	return GetOutput{Key: in.Key, Value: val, Found: true}, nil
}

// SetInput is the set request. TTLSeconds of 0 keeps the key without expiry.
type SetInput struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

func set(ctx context.Context, c *Client, in SetInput) (interface{}, error) {
	if in.Key == "" {
		return nil, errors.New("redis: key is required")
	}
	if in.TTLSeconds < 0 {
		return nil, errors.New("redis: ttlSeconds must not be negative")
	}
	if err := c.rdb.Set(ctx, in.Key, in.Value, time.Duration(in.TTLSeconds)*time.Second).Err(); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

// DelInput lists keys to delete.
type DelInput struct {
	Keys []string `json:"keys"`
}

func del(ctx context.Context, c *Client, in DelInput) (interface{}, error) {
	if len(in.Keys) == 0 {
		return nil, errors.New("redis: keys is required")
	}
	n, err := c.rdb.Del(ctx, in.Keys...).Result()
	if err != nil {
		return nil, err
	}
	return map[string]int64{"deleted": n}, nil
}

func ping(ctx context.Context, c *Client, _ struct{}) (interface{}, error) {
	pong, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	return map[string]string{"reply": pong}, nil
}
