package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/kazi-backend/internal/logger"
)

// Broadcaster доставляет событие websocket клиентам пользователя.
type Broadcaster interface {
	BroadcastChange(userID uuid.UUID, table string, payload []byte)
}

// Counter считает опубликованные события.
type Counter interface {
	RealtimeEvent(table, changeType string)
}

// Feed рассылает изменения в хаб и зеркалирует их в шину.
type Feed struct {
	hub       Broadcaster
	publisher Publisher
	counter   Counter
	log       *logrus.Entry
}

func NewFeed(hub Broadcaster, publisher Publisher, counter Counter) *Feed {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Feed{
		hub:       hub,
		publisher: publisher,
		counter:   counter,
		log:       logger.WithComponent("realtime"),
	}
}

// Emit отправляет событие владельцу строки.
func (f *Feed) Emit(ctx context.Context, userID uuid.UUID, change Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		f.log.WithError(err).WithField("table", change.Table).Warn("не удалось сериализовать событие")
		return
	}

	if f.hub != nil {
		f.hub.BroadcastChange(userID, change.Table, payload)
	}
	if f.counter != nil {
		f.counter.RealtimeEvent(change.Table, change.Type)
	}
	if err := f.publisher.Publish(ctx, change.Subject(), change); err != nil {
		f.log.WithError(err).WithField("subject", change.Subject()).Warn("не удалось опубликовать событие в NATS")
	}
}
