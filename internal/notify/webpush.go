package notify

import (
	"context"
	"encoding/json"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/ritmofit/internal/kv"
	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
)

const (
	subsKey        = "push:subs"
	maxSubs        = 10
	webPushTTLSecs = 30
)

// Subscription — подписка браузерной оболочки (формат PushSubscription).
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// WebPush доставляет локальные уведомления в браузерную оболочку через
// Web Push — на случай, когда она не подключена по WebSocket. Подписки
// живут в kv-хранилище агента. Без VAPID-ключей доставка — no-op.
type WebPush struct {
	store kv.Store
	vapid *webpush.Options
}

// NewWebPush создаёт приёмник. publicKey/privateKey пустые — пуши отключены
// (подписки сохраняются, отправка не выполняется).
func NewWebPush(store kv.Store, publicKey, privateKey, subscriber string) *WebPush {
	w := &WebPush{store: store}
	if publicKey != "" && privateKey != "" {
		w.vapid = &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             webPushTTLSecs,
		}
	}
	return w
}

// Enabled сообщает, настроены ли VAPID-ключи.
func (w *WebPush) Enabled() bool { return w.vapid != nil }

// PublicKey — публичный VAPID-ключ для подписки в оболочке.
func (w *WebPush) PublicKey() string {
	if w.vapid == nil {
		return ""
	}
	return w.vapid.VAPIDPublicKey
}

func (w *WebPush) loadSubs(ctx context.Context) ([]Subscription, error) {
	raw, err := w.store.Get(ctx, subsKey)
	if err != nil || raw == "" {
		return nil, err
	}
	var subs []Subscription
	if err := json.Unmarshal([]byte(raw), &subs); err != nil {
		return nil, fmt.Errorf("notify: parse subscriptions: %w", err)
	}
	return subs, nil
}

func (w *WebPush) saveSubs(ctx context.Context, subs []Subscription) error {
	if len(subs) == 0 {
		return w.store.Delete(ctx, subsKey)
	}
	raw, err := json.Marshal(subs)
	if err != nil {
		return err
	}
	return w.store.Set(ctx, subsKey, string(raw))
}

// Subscribe добавляет подписку (по endpoint, без дублей; старые вытесняются
// при превышении лимита).
func (w *WebPush) Subscribe(ctx context.Context, sub Subscription) error {
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return fmt.Errorf("notify: subscription requires endpoint and keys")
	}
	subs, err := w.loadSubs(ctx)
	if err != nil {
		return err
	}
	kept := subs[:0]
	for _, s := range subs {
		if s.Endpoint != sub.Endpoint {
			kept = append(kept, s)
		}
	}
	kept = append(kept, sub)
	if len(kept) > maxSubs {
		kept = kept[len(kept)-maxSubs:]
	}
	return w.saveSubs(ctx, kept)
}

// Unsubscribe удаляет подписку по endpoint; отсутствие — не ошибка.
func (w *WebPush) Unsubscribe(ctx context.Context, endpoint string) error {
	subs, err := w.loadSubs(ctx)
	if err != nil {
		return err
	}
	kept := subs[:0]
	for _, s := range subs {
		if s.Endpoint != endpoint {
			kept = append(kept, s)
		}
	}
	return w.saveSubs(ctx, kept)
}

// Deliver отправляет уведомление всем подпискам. Протухшие подписки
// (404/410 от push-сервиса) удаляются.
func (w *WebPush) Deliver(ctx context.Context, n model.LocalNotification) error {
	if w.vapid == nil {
		return nil
	}
	subs, err := w.loadSubs(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	var stale []string
	sent := 0
	for i := range subs {
		sub := &subs[i]
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, w.vapid)
		if err != nil {
			logger.Errorf("notify: webpush send: %v", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			stale = append(stale, sub.Endpoint)
			continue
		}
		sent++
	}
	for _, endpoint := range stale {
		if err := w.Unsubscribe(ctx, endpoint); err != nil {
			logger.Errorf("notify: drop stale subscription: %v", err)
		}
	}
	if sent == 0 && len(subs) > 0 {
		return fmt.Errorf("notify: webpush: no subscription accepted the message")
	}
	return nil
}
