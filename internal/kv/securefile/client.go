// Package securefile — kv-бэкенд с шифрованием на диске. Ключ устройства
// лежит рядом (0600), данные шифруются ChaCha20-Poly1305; ключ шифрования
// выводится из ключа устройства через HKDF-SHA256.
package securefile

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keyFileName  = "agent.key"
	dataFileName = "agent.kv"
	hkdfInfo     = "ritmofit-agent-kv"
)

var errCorrupt = errors.New("securefile: data file corrupt")

type Client struct {
	mu   sync.Mutex
	path string
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
	data map[string]string
}

// New открывает (или создаёт) защищённое хранилище в dataDir. Любая ошибка
// здесь означает "бэкенд недоступен" — вызывающий падает на plainfile.
func New(dataDir string) (*Client, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("securefile: create data dir: %w", err)
	}
	master, err := ensureDeviceKey(filepath.Join(dataDir, keyFileName))
	if err != nil {
		return nil, err
	}
	sealKey := make([]byte, chacha20poly1305.KeySize)
	h := hkdf.New(sha256.New, master, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(h, sealKey); err != nil {
		return nil, fmt.Errorf("securefile: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(sealKey)
	if err != nil {
		return nil, fmt.Errorf("securefile: aead: %w", err)
	}
	c := &Client{path: filepath.Join(dataDir, dataFileName), aead: aead, data: make(map[string]string)}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureDeviceKey читает ключ устройства или генерирует новый (32 байта, 0600).
func ensureDeviceKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil && len(key) == 32 {
		return key, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("securefile: read key: %w", err)
	}
	key = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("securefile: generate key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("securefile: write key: %w", err)
	}
	return key, nil
}

func (c *Client) load() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("securefile: read %s: %w", c.path, err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return errCorrupt
	}
	nonce, sealed := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return fmt.Errorf("securefile: decrypt: %w", err)
	}
	if len(plain) > 0 {
		if err := json.Unmarshal(plain, &c.data); err != nil {
			return errCorrupt
		}
	}
	return nil
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

// persist шифрует весь map и пишет атомарно (tmp + rename), свежий nonce на каждую запись.
func (c *Client) persist() error {
	plain, err := json.Marshal(c.data)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	sealed := c.aead.Seal(nil, nonce, plain, nil)
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, append(nonce, sealed...), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
