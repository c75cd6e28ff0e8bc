// Package ws — поток событий агента для локальной оболочки терминала.
// Оболочка подключается по WebSocket и получает события: локальные
// уведомления, смену состояния связи и навигационные намерения от тапов.
// Поток широковещательный: все подключённые оболочки одного терминала
// видят одно и то же.
package ws

import (
	"context"
	"sync"

	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/model"
	"github.com/ritmofit/internal/route"
)

// Виды событий в сторону оболочки.
const (
	EventNotification = "notification"
	EventConnectivity = "connectivity"
	EventNavigate     = "navigate"
)

// Event — одно событие потока.
type Event struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 16
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		maxConns:   maxConns,
		register:   make(chan *Client, 8),
		unregister: make(chan *Client, 8),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting", h.maxConns)
		c.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logger.Infof("ws shell connected (%d active)", n)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
	logger.Infof("ws shell disconnected (%d active)", n)
}

// ClientCount — число подключённых оболочек.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast рассылает событие всем подключённым оболочкам.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, ev)
	}
}

// Deliver показывает локальное уведомление в оболочке. Реализует приёмник
// диспетчера уведомлений. Нет подключённых оболочек — не ошибка: Web Push
// (если настроен) подхватит доставку.
func (h *Hub) Deliver(ctx context.Context, n model.LocalNotification) error {
	if h.ClientCount() == 0 {
		logger.Debugf("ws deliver: no shell connected, skipping id=%s", n.Data["notificationId"])
		return nil
	}
	h.Broadcast(Event{Kind: EventNotification, Payload: n})
	return nil
}

// Navigate передаёт оболочке навигационное намерение от тапа по уведомлению.
func (h *Hub) Navigate(intent route.NavigationIntent) {
	h.Broadcast(Event{Kind: EventNavigate, Payload: intent})
}

func (h *Hub) sendToClient(c *Client, ev Event) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow shell client")
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
