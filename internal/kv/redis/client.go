// Package redis — kv-бэкенд на Redis для sede с несколькими терминалами,
// разделяющими одно состояние агента.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agent:"

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Get возвращает "" без ошибки, если ключа нет (конвенция kv.Store).
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.cli.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// Set сохраняет значение без TTL: время жизни токена решает бэкенд, не хранилище.
func (c *Client) Set(ctx context.Context, key, value string) error {
	return c.cli.Set(ctx, keyPrefix+key, value, 0).Err()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.cli.Del(ctx, keyPrefix+key).Err()
}
