package dto

import "encoding/json"

// WorkflowRequest создание и изменение сценария.
type WorkflowRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Description *string `json:"description"`
	TriggerType string  `json:"trigger_type"`
	IsActive    *bool   `json:"is_active"`
}

// WorkflowActionRequest действие в списке сценария.
type WorkflowActionRequest struct {
	Type            string          `json:"type" binding:"required"`
	Config          json.RawMessage `json:"config"`
	ContinueOnError bool            `json:"continue_on_error"`
}

// WorkflowActionsRequest полная замена списка действий.
type WorkflowActionsRequest struct {
	Actions []WorkflowActionRequest `json:"actions" binding:"dive"`
}

// ExecuteWorkflowRequest ручной запуск.
type ExecuteWorkflowRequest struct {
	Input map[string]any `json:"input"`
	Async bool           `json:"async"`
}

// ScheduleRequest cron-расписание.
type ScheduleRequest struct {
	CronExpression string `json:"cron_expression" binding:"required"`
	Timezone       string `json:"timezone"`
	IsEnabled      *bool  `json:"is_enabled"`
}
