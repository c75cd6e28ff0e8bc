// Package kv — единая абстракция key-value хранилища состояния агента
// (токен сессии, профиль, подписки, диагностические флаги).
// Конкретный бэкенд выбирается один раз на старте; остальной код зависит
// только от интерфейса и не знает, какой бэкенд активен.
package kv

import (
	"context"

	"github.com/ritmofit/internal/kv/plainfile"
	"github.com/ritmofit/internal/kv/redis"
	"github.com/ritmofit/internal/kv/securefile"
	"github.com/ritmofit/internal/logger"
)

// Store — хранилище строк по ключу. Get возвращает "" без ошибки, если
// ключа нет. Реализации: securefile, plainfile, memory, redis.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open выбирает бэкенд по возможностям окружения: явный redis:// из
// конфигурации, иначе защищённый файл, иначе обычный файл. Падение на
// следующий бэкенд логируется, но не является ошибкой для вызывающего.
func Open(ctx context.Context, storeURL, dataDir string) (Store, error) {
	if storeURL != "" {
		return redis.New(ctx, storeURL)
	}
	s, err := securefile.New(dataDir)
	if err == nil {
		return s, nil
	}
	logger.Errorf("kv: secure store unavailable: %v (falling back to plain file)", err)
	return plainfile.New(dataDir)
}
