package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SystemSetting пользовательская настройка ключ-значение.
type SystemSetting struct {
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Key       string          `db:"key" json:"key"`
	Value     json.RawMessage `db:"value" json:"value"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// SystemLog запись системного журнала.
type SystemLog struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Level     string          `db:"level" json:"level"`
	Source    string          `db:"source" json:"source"`
	Message   string          `db:"message" json:"message"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// SystemAlert системное оповещение.
type SystemAlert struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	Severity       string     `db:"severity" json:"severity"`
	Title          string     `db:"title" json:"title"`
	Message        string     `db:"message" json:"message"`
	Status         string     `db:"status" json:"status"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// SystemStatus сводное состояние системы.
type SystemStatus struct {
	Status              string         `json:"status"`
	DatabaseLatencyMS   float64        `json:"database_latency_ms"`
	OpenAlerts          map[string]int `json:"open_alerts"`
	RealtimeConnections int            `json:"realtime_connections"`
	UptimeSeconds       int64          `json:"uptime_seconds"`
	CheckedAt           time.Time      `json:"checked_at"`
}
