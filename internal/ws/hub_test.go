package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lastGauge struct {
	n atomic.Int64
}

func (g *lastGauge) SetRealtimeConnections(n int) { g.n.Store(int64(n)) }

func startHub(t *testing.T, userID uuid.UUID) (*Hub, *lastGauge, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	gauge := &lastGauge{}
	hub := NewHub(gauge)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, userID)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.ConnectionCount() == 1 && gauge.n.Load() == 1
	}, time.Second, 5*time.Millisecond)
	return hub, gauge, conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(raw)
}

func TestHub_DeliversToOwner(t *testing.T) {
	userID := uuid.New()
	hub, gauge, conn := startHub(t, userID)
	assert.Equal(t, int64(1), gauge.n.Load())

	hub.BroadcastChange(uuid.New(), "urls", []byte(`{"table":"urls","for":"someone else"}`))
	hub.BroadcastChange(userID, "urls", []byte(`{"table":"urls"}`))

	assert.Equal(t, `{"table":"urls"}`, readText(t, conn))
}

func TestHub_Subscriptions(t *testing.T) {
	userID := uuid.New()
	hub, _, conn := startHub(t, userID)

	require.NoError(t, conn.WriteJSON(ControlMessage{Action: ActionSubscribe, Table: "proposals"}))
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients[userID] {
			return !c.wants("urls")
		}
		return false
	}, time.Second, 5*time.Millisecond)

	hub.BroadcastChange(userID, "urls", []byte(`"urls"`))
	hub.BroadcastChange(userID, "proposals", []byte(`"proposals"`))

	assert.Equal(t, `"proposals"`, readText(t, conn))
}

func TestHub_DisconnectUpdatesCount(t *testing.T) {
	hub, gauge, conn := startHub(t, uuid.New())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return hub.ConnectionCount() == 0 && gauge.n.Load() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestClient_WantsWithoutSubscriptions(t *testing.T) {
	c := NewClient(nil, nil, uuid.New())
	assert.True(t, c.wants("anything"))

	c.apply(ControlMessage{Action: ActionSubscribe, Table: "files"})
	assert.True(t, c.wants("files"))
	assert.False(t, c.wants("urls"))

	c.apply(ControlMessage{Action: ActionUnsubscribe, Table: "files"})
	assert.True(t, c.wants("urls"))
}
