// Package events описывает события изменения таблиц и их доставку
// подписчикам realtime ленты и в шину NATS.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Типы изменений строки.
const (
	TypeInsert = "INSERT"
	TypeUpdate = "UPDATE"
	TypeDelete = "DELETE"
)

// Change событие изменения строки таблицы.
type Change struct {
	Type            string    `json:"type"`
	Table           string    `json:"table"`
	Record          any       `json:"record,omitempty"`
	OldRecord       any       `json:"old_record,omitempty"`
	CommitTimestamp time.Time `json:"commit_timestamp"`
}

// Subject возвращает тему NATS для события: kazi.<table>.<type>.
func (c Change) Subject() string {
	return "kazi." + c.Table + "." + strings.ToLower(c.Type)
}

// Emitter принимает изменения от сервисов.
type Emitter interface {
	Emit(ctx context.Context, userID uuid.UUID, change Change)
}

// Publisher публикует события во внешнюю шину.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopEmitter игнорирует события.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, uuid.UUID, Change) {}

// Inserted собирает событие вставки.
func Inserted(table string, record any) Change {
	return Change{Type: TypeInsert, Table: table, Record: record, CommitTimestamp: time.Now().UTC()}
}

// Updated собирает событие обновления.
func Updated(table string, record, old any) Change {
	return Change{Type: TypeUpdate, Table: table, Record: record, OldRecord: old, CommitTimestamp: time.Now().UTC()}
}

// Deleted собирает событие удаления.
func Deleted(table string, old any) Change {
	return Change{Type: TypeDelete, Table: table, OldRecord: old, CommitTimestamp: time.Now().UTC()}
}
