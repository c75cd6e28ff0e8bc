// Package plainfile — kv-бэкенд в обычном JSON-файле (0600). Используется,
// когда защищённое хранилище недоступно.
package plainfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileName = "agent.json"

type Client struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

func New(dataDir string) (*Client, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("plainfile: create data dir: %w", err)
	}
	c := &Client{path: filepath.Join(dataDir, fileName), data: make(map[string]string)}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("plainfile: read %s: %w", c.path, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.data); err != nil {
			return nil, fmt.Errorf("plainfile: parse %s: %w", c.path, err)
		}
	}
	return c, nil
}

func (c *Client) Close() error { return nil }

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return c.persist()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return c.persist()
}

// persist пишет весь map атомарно: сначала во временный файл, потом rename.
func (c *Client) persist() error {
	raw, err := json.Marshal(c.data)
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
