package startup

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ritmofit/internal/logger"
)

// ConnectDBWithRetry подключается к Postgres стаба с повторами: embedded
// postgres в -dev режиме поднимается не мгновенно, и стабу нет смысла
// падать раньше него. По истечении maxWait процесс завершается.
// logPrefix добавляется к сообщениям лога (например "gymstub: ").
func ConnectDBWithRetry(poolCfg *pgxpool.Config, maxWait time.Duration, logPrefix string) *pgxpool.Pool {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		pool, err := tryConnect(poolCfg)
		if err == nil {
			return pool
		}
		if time.Now().After(deadline) {
			logger.Errorf("%sdb unavailable, gave up after %v: %v", logPrefix, maxWait, err)
			os.Exit(1)
		}
		logger.Errorf("%sdb not ready, retry in %v: %v", logPrefix, backoff, err)
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// tryConnect — одна попытка: создать пул и проверить его ping-ом.
func tryConnect(poolCfg *pgxpool.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
