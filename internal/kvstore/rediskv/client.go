// Package rediskv implements kvstore.Store on redis hashes.
package rediskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"imgshare-backend/internal/kvstore"
)

type Client struct {
	rdb *redis.Client
}

var _ kvstore.Store = (*Client)(nil)

// New connects to redis at addr and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Get(ctx context.Context, hkey, key string) (string, error) {
	value, err := c.rdb.HGet(ctx, hkey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", kvstore.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s/%s: %w", hkey, key, err)
	}
	return value, nil
}

func (c *Client) Set(ctx context.Context, hkey, key, value string) error {
	if err := c.rdb.HSet(ctx, hkey, key, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s/%s: %w", hkey, key, err)
	}
	return nil
}

func (c *Client) GetAll(ctx context.Context, hkey string) (map[string]string, error) {
	all, err := c.rdb.HGetAll(ctx, hkey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", hkey, err)
	}
	return all, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
