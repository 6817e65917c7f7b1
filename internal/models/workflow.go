package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Workflow сценарий автоматизации.
type Workflow struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	TriggerType string     `db:"trigger_type" json:"trigger_type"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	RunCount    int        `db:"run_count" json:"run_count"`
	LastRunAt   *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	Actions []WorkflowAction `db:"-" json:"actions,omitempty"`
}

// Типы запуска сценария.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerEvent    = "event"
)

// Типы действий сценария.
const (
	ActionLog         = "log"
	ActionDelay       = "delay"
	ActionWebhook     = "webhook"
	ActionSetVariable = "set_variable"
	ActionCondition   = "condition"
)

// WorkflowAction шаг сценария.
type WorkflowAction struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	WorkflowID      uuid.UUID       `db:"workflow_id" json:"workflow_id"`
	Position        int             `db:"position" json:"position"`
	Type            string          `db:"type" json:"type"`
	Config          json.RawMessage `db:"config" json:"config"`
	ContinueOnError bool            `db:"continue_on_error" json:"continue_on_error"`
}

// WorkflowExecution запуск сценария.
type WorkflowExecution struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	WorkflowID uuid.UUID       `db:"workflow_id" json:"workflow_id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	Status     string          `db:"status" json:"status"`
	Trigger    string          `db:"trigger" json:"trigger"`
	Input      json.RawMessage `db:"input" json:"input"`
	Output     json.RawMessage `db:"output" json:"output"`
	Steps      json.RawMessage `db:"steps" json:"steps"`
	Error      *string         `db:"error" json:"error,omitempty"`
	StartedAt  time.Time       `db:"started_at" json:"started_at"`
	FinishedAt *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}

// ExecutionStep результат одного действия в запуске.
type ExecutionStep struct {
	Position   int             `json:"position"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// Статусы шагов запуска.
const (
	StepStatusCompleted = "completed"
	StepStatusFailed    = "failed"
	StepStatusSkipped   = "skipped"
)

// WorkflowSchedule cron-расписание сценария.
type WorkflowSchedule struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	WorkflowID     uuid.UUID  `db:"workflow_id" json:"workflow_id"`
	CronExpression string     `db:"cron_expression" json:"cron_expression"`
	Timezone       string     `db:"timezone" json:"timezone"`
	IsEnabled      bool       `db:"is_enabled" json:"is_enabled"`
	NextRunAt      *time.Time `db:"next_run_at" json:"next_run_at,omitempty"`
	LastRunAt      *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
