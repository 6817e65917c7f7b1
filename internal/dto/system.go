package dto

import "encoding/json"

// SettingRequest значение настройки.
type SettingRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// LogRequest запись в системный журнал.
type LogRequest struct {
	Level    string          `json:"level" binding:"required"`
	Source   string          `json:"source" binding:"required"`
	Message  string          `json:"message" binding:"required"`
	Metadata json.RawMessage `json:"metadata"`
}

// AlertRequest создание оповещения.
type AlertRequest struct {
	Severity string `json:"severity" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Message  string `json:"message"`
}
