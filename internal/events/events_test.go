package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHub struct {
	mu     sync.Mutex
	users  []uuid.UUID
	tables []string
	raw    [][]byte
}

func (h *recordingHub) BroadcastChange(userID uuid.UUID, table string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users = append(h.users, userID)
	h.tables = append(h.tables, table)
	h.raw = append(h.raw, payload)
}

type recordingPublisher struct {
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.topics = append(p.topics, topic)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type countingMetrics struct{ n map[string]int }

func (c *countingMetrics) RealtimeEvent(table, changeType string) {
	c.n[table+":"+changeType]++
}

func TestChange_Subject(t *testing.T) {
	assert.Equal(t, "kazi.proposals.insert", Inserted("proposals", nil).Subject())
	assert.Equal(t, "kazi.urls.update", Updated("urls", nil, nil).Subject())
	assert.Equal(t, "kazi.teams.delete", Deleted("teams", nil).Subject())
}

func TestFeed_EmitDeliversToHubAndBus(t *testing.T) {
	hub := &recordingHub{}
	pub := &recordingPublisher{}
	cnt := &countingMetrics{n: map[string]int{}}
	feed := NewFeed(hub, pub, cnt)

	user := uuid.New()
	feed.Emit(context.Background(), user, Updated("proposals", map[string]any{"status": "sent"}, map[string]any{"status": "draft"}))

	require.Len(t, hub.raw, 1)
	assert.Equal(t, user, hub.users[0])
	assert.Equal(t, "proposals", hub.tables[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(hub.raw[0], &decoded))
	assert.Equal(t, "UPDATE", decoded["type"])
	assert.Equal(t, "proposals", decoded["table"])
	assert.Equal(t, "sent", decoded["record"].(map[string]any)["status"])
	assert.Equal(t, "draft", decoded["old_record"].(map[string]any)["status"])
	assert.NotEmpty(t, decoded["commit_timestamp"])

	assert.Equal(t, []string{"kazi.proposals.update"}, pub.topics)
	assert.Equal(t, 1, cnt.n["proposals:UPDATE"])
}

func TestFeed_NilCollaborators(t *testing.T) {
	feed := NewFeed(nil, nil, nil)
	assert.NotPanics(t, func() {
		feed.Emit(context.Background(), uuid.New(), Inserted("files", nil))
	})
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	assert.NoError(t, p.Publish(context.Background(), "kazi.x.insert", nil))
	assert.NoError(t, p.Close())
}
