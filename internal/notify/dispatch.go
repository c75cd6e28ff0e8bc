// Package notify забирает ожидающие уведомления с бэкенда и показывает их
// локально (WebSocket-оболочке и/или через Web Push).
//
// Контракт фоновой функции: никогда не возвращать ошибку — она вызывается
// из планировщика, где необработанный сбой трактуется как провал задачи.
// Дедупликации по id нет: бэкенд отвечает за однократную выдачу записи.
package notify

import (
	"context"

	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
)

// Source отдаёт ожидающие записи (API-клиент).
type Source interface {
	PendingNotifications(ctx context.Context) ([]model.PendingNotification, error)
}

// TokenSource — проверка "залогинены ли мы" перед походом в сеть.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Notifier показывает одно локальное уведомление.
type Notifier interface {
	Deliver(ctx context.Context, n model.LocalNotification) error
}

// Multi рассылает уведомление во все приёмники. Сбой одного приёмника
// логируется и не мешает остальным.
type Multi []Notifier

func (m Multi) Deliver(ctx context.Context, n model.LocalNotification) error {
	var lastErr error
	delivered := false
	for _, sink := range m {
		if err := sink.Deliver(ctx, n); err != nil {
			logger.Errorf("notify: sink delivery failed: %v", err)
			lastErr = err
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return lastErr
}

type Dispatcher struct {
	tokens TokenSource
	source Source
	sink   Notifier
}

func NewDispatcher(tokens TokenSource, source Source, sink Notifier) *Dispatcher {
	return &Dispatcher{tokens: tokens, source: source, sink: sink}
}

// FetchAndDispatch забирает записи и показывает каждую в порядке получения.
// Возвращает число записей, которые отдал сервер (не число показанных).
// Без токена возвращает 0, не делая сетевого вызова — фоновый запуск в
// разлогиненном состоянии не должен шуметь 401-ми.
func (d *Dispatcher) FetchAndDispatch(ctx context.Context) int {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		logger.Errorf("notify: read token: %v", err)
		return 0
	}
	if token == "" {
		return 0
	}
	records, err := d.source.PendingNotifications(ctx)
	if err != nil {
		// Сетевые и прикладные сбои одинаково проглатываются: трекер связи
		// уже получил свой сигнал от API-клиента.
		logger.Debugf("notify: fetch failed: %v", err)
		return 0
	}
	for _, rec := range records {
		if err := d.sink.Deliver(ctx, rec.Localize()); err != nil {
			logger.Errorf("notify: deliver id=%d type=%s: %v", rec.ID, rec.Type, err)
			continue
		}
	}
	if len(records) > 0 {
		logger.Infof("notify: dispatched %d notification(s)", len(records))
	}
	return len(records)
}
