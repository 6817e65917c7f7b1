// Package ws доставляет события изменений по websocket подписчикам.
package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/logger"
)

// ConnectionGauge принимает текущее число подключений.
type ConnectionGauge interface {
	SetRealtimeConnections(n int)
}

// Hub управляет всеми WebSocket клиентами.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	count      int
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	gauge      ConnectionGauge
}

type message struct {
	userID  uuid.UUID
	table   string
	payload []byte
}

// NewHub создаёт хаб. gauge может быть nil.
func NewHub(gauge ConnectionGauge) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		gauge:      gauge,
	}
}

// Run запускает главный цикл хаба до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastChange ставит событие таблицы в очередь рассылки клиентам
// пользователя. При переполненной очереди событие отбрасывается.
func (h *Hub) BroadcastChange(userID uuid.UUID, table string, payload []byte) {
	select {
	case h.broadcast <- message{userID: userID, table: table, payload: payload}:
	default:
		logger.WithComponent("realtime").WithField("table", table).Warn("broadcast queue full, event dropped")
	}
}

// ConnectionCount число открытых подключений.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	h.count++
	n := h.count
	h.mu.Unlock()

	h.report(n)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.userID]
	if ok {
		if _, ok = clients[client]; ok {
			delete(clients, client)
			close(client.send)
			h.count--
			if len(clients) == 0 {
				delete(h.clients, client.userID)
			}
		}
	}
	n := h.count
	h.mu.Unlock()

	if ok {
		h.report(n)
	}
}

// send доставляет событие подписанным клиентам. Клиент, не успевающий
// вычитывать очередь, отключается.
func (h *Hub) send(msg message) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients[msg.userID] {
		if !client.wants(msg.table) {
			continue
		}
		select {
		case client.send <- msg.payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		logger.WithComponent("realtime").WithField("user_id", client.userID).Warn("slow client dropped")
		h.removeClient(client)
		client.conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	var all []*Client
	for _, clients := range h.clients {
		for client := range clients {
			all = append(all, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range all {
		h.removeClient(client)
		client.conn.Close()
	}
}

func (h *Hub) report(n int) {
	if h.gauge != nil {
		h.gauge.SetRealtimeConnections(n)
	}
}
