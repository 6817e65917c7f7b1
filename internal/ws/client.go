package ws

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/kazi-backend/internal/goroutine"
	"github.com/ignatzorin/kazi-backend/internal/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxReadBytes = 4 << 10
	sendBuffer   = 64
)

// Действия клиента.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ControlMessage сообщение клиента о подписке на таблицу.
type ControlMessage struct {
	Action string `json:"action"`
	Table  string `json:"table"`
}

// Client представляет одно подключение WebSocket. Без подписок клиент
// получает события всех таблиц.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	userID uuid.UUID
	send   chan []byte

	mu     sync.RWMutex
	tables map[string]struct{}

	closeOnce sync.Once
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		tables: make(map[string]struct{}),
	}
}

// Serve регистрирует клиента и обслуживает соединение до его закрытия.
func (h *Hub) Serve(conn *websocket.Conn, userID uuid.UUID) {
	client := NewClient(conn, h, userID)
	if !h.Register(client) {
		conn.Close()
		return
	}
	goroutine.SafeGo(client.writePump)
	client.readPump()
}

// Close закрывает соединение.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		c.conn.Close()
	})
}

func (c *Client) wants(table string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.tables) == 0 {
		return true
	}
	_, ok := c.tables[table]
	return ok
}

func (c *Client) apply(msg ControlMessage) {
	table := strings.TrimSpace(msg.Table)
	if table == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case ActionSubscribe:
		c.tables[table] = struct{}{}
	case ActionUnsubscribe:
		delete(c.tables, table)
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithComponent("realtime").WithError(err).Debug("connection closed")
			}
			return
		}
		var msg ControlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		c.apply(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
