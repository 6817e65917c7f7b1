package dto

// TimesheetRequest создание и изменение табеля. Даты в формате 2006-01-02.
type TimesheetRequest struct {
	ProjectName string  `json:"project_name" binding:"required"`
	PeriodStart string  `json:"period_start" binding:"required"`
	PeriodEnd   string  `json:"period_end" binding:"required"`
	HourlyRate  float64 `json:"hourly_rate" binding:"gte=0"`
	Notes       *string `json:"notes"`
}

// TimesheetEntryRequest запись о работе.
type TimesheetEntryRequest struct {
	WorkDate    string  `json:"work_date" binding:"required"`
	Hours       float64 `json:"hours" binding:"required"`
	Description *string `json:"description"`
	Task        *string `json:"task"`
	Billable    *bool   `json:"billable"`
}

// TimesheetDecisionRequest комментарий к решению согласующего.
type TimesheetDecisionRequest struct {
	Comment *string `json:"comment"`
}
