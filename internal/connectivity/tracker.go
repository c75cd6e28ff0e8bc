// Package connectivity сводит состояние сети устройства и достижимость
// бэкенда в один сигнал online/offline для блокирующего offline-экрана.
//
// Инвариант: offline == !deviceOnline || !backendOnline — всегда
// вычисляется, никогда не выставляется напрямую.
package connectivity

import (
	"context"
	"sync"

	"github.com/ritmofit/internal/logger"
)

// State — фаза трекера для оболочки.
type State string

const (
	StateOnline   State = "online"
	StateOffline  State = "offline"
	StateChecking State = "checking"
)

// Snapshot — производное состояние на момент публикации.
type Snapshot struct {
	DeviceOnline  bool `json:"device_online"`
	BackendOnline bool `json:"backend_online"`
	Offline       bool `json:"offline"`
	Checking      bool `json:"checking"`
}

// State возвращает фазу: checking пока проба в полёте, иначе online/offline.
func (s Snapshot) State() State {
	if s.Checking {
		return StateChecking
	}
	if s.Offline {
		return StateOffline
	}
	return StateOnline
}

// DeviceNetworkState — то, что сообщает ОС/оболочка о сети устройства.
// InternetReachable nil означает "неизвестно" и не считается за offline.
type DeviceNetworkState struct {
	Connected         bool  `json:"connected"`
	InternetReachable *bool `json:"internet_reachable"`
}

// EvaluateDevice — чистая функция: online, если подключены и интернет
// не помечен явно недостижимым.
func EvaluateDevice(ns DeviceNetworkState) bool {
	if !ns.Connected {
		return false
	}
	return ns.InternetReachable == nil || *ns.InternetReachable
}

// Prober — лёгкая проба бэкенда (GET /). Любой HTTP-ответ — успех.
type Prober interface {
	Ping(ctx context.Context) error
}

const subBuffer = 8

// Tracker — процессный синглтон; создаётся один раз на старте и передаётся
// по ссылке всем, кто публикует или подписывается.
type Tracker struct {
	mu            sync.Mutex
	deviceOnline  bool
	backendOnline bool
	probesInFly   int
	prober        Prober
	subs          map[chan Snapshot]struct{}
}

// NewTracker создаёт трекер в оптимистичном состоянии online: offline-экран
// показывается только по факту сбоя, не на старте.
func NewTracker(prober Prober) *Tracker {
	return &Tracker{
		deviceOnline:  true,
		backendOnline: true,
		prober:        prober,
		subs:          make(map[chan Snapshot]struct{}),
	}
}

// SetProber задаёт пробу после создания: API-клиент и трекер ссылаются друг
// на друга, кто-то создаётся первым.
func (t *Tracker) SetProber(p Prober) {
	t.mu.Lock()
	t.prober = p
	t.mu.Unlock()
}

// Evaluate принимает состояние сети устройства. Если устройство offline,
// бэкенд немедленно считается недостижимым — без какой-либо пробы.
func (t *Tracker) Evaluate(ns DeviceNetworkState) {
	online := EvaluateDevice(ns)
	t.mu.Lock()
	t.deviceOnline = online
	if !online {
		t.backendOnline = false
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snap)
}

// ProbeBackend выполняет пробу и возвращает её исход. Перекрывающиеся
// пробы допустимы: состояние checking держится, пока хотя бы одна в полёте.
func (t *Tracker) ProbeBackend(ctx context.Context) bool {
	t.mu.Lock()
	t.probesInFly++
	p := t.prober
	snap := t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snap)

	err := p.Ping(ctx)
	ok := err == nil
	if err != nil {
		logger.Debugf("connectivity: probe failed: %v", err)
	}

	t.mu.Lock()
	t.probesInFly--
	t.backendOnline = ok
	snap = t.snapshotLocked()
	t.mu.Unlock()
	t.publish(snap)
	return ok
}

// Retry — ручной повтор для кнопки на offline-экране.
func (t *Tracker) Retry(ctx context.Context) bool {
	return t.ProbeBackend(ctx)
}

// ReportOutcome — общеприкладной сигнал от API-клиента: любой полученный
// ответ (в том числе 5xx) значит "бэкенд достижим". Так сигнал
// восстанавливается от обычного трафика без отдельного опроса.
func (t *Tracker) ReportOutcome(reachable bool) {
	t.mu.Lock()
	changed := t.backendOnline != reachable
	t.backendOnline = reachable
	snap := t.snapshotLocked()
	t.mu.Unlock()
	if changed {
		t.publish(snap)
	}
}

// Snapshot возвращает текущее производное состояние.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		DeviceOnline:  t.deviceOnline,
		BackendOnline: t.backendOnline,
		Offline:       !t.deviceOnline || !t.backendOnline,
		Checking:      t.probesInFly > 0,
	}
}

// Subscribe возвращает буферизованный канал снапшотов. Медленный подписчик
// теряет промежуточные снапшоты, но никого не блокирует.
func (t *Tracker) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, subBuffer)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

// Unsubscribe снимает подписку и закрывает канал.
func (t *Tracker) Unsubscribe(ch chan Snapshot) {
	t.mu.Lock()
	_, ok := t.subs[ch]
	delete(t.subs, ch)
	t.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (t *Tracker) publish(snap Snapshot) {
	t.mu.Lock()
	for ch := range t.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	t.mu.Unlock()
}
