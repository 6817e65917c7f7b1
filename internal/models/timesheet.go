package models

import (
	"time"

	"github.com/google/uuid"
)

// Timesheet табель учёта времени за период.
type Timesheet struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	ProjectName   string     `db:"project_name" json:"project_name"`
	PeriodStart   time.Time  `db:"period_start" json:"period_start"`
	PeriodEnd     time.Time  `db:"period_end" json:"period_end"`
	Status        string     `db:"status" json:"status"`
	TotalHours    float64    `db:"total_hours" json:"total_hours"`
	BillableHours float64    `db:"billable_hours" json:"billable_hours"`
	HourlyRate    float64    `db:"hourly_rate" json:"hourly_rate"`
	TotalAmount   float64    `db:"total_amount" json:"total_amount"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	SubmittedAt   *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	Entries   []TimesheetEntry    `db:"-" json:"entries,omitempty"`
	Approvals []TimesheetApproval `db:"-" json:"approvals,omitempty"`
}

// Editable сообщает, можно ли менять записи табеля.
func (t *Timesheet) Editable() bool {
	return t.Status == TimesheetStatusDraft || t.Status == TimesheetStatusRejected
}

// Covers проверяет, что дата попадает в период табеля.
func (t *Timesheet) Covers(day time.Time) bool {
	d := day.Truncate(24 * time.Hour)
	return !d.Before(t.PeriodStart.Truncate(24*time.Hour)) && !d.After(t.PeriodEnd.Truncate(24*time.Hour))
}

// TimesheetEntry запись о работе за день.
type TimesheetEntry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	TimesheetID uuid.UUID `db:"timesheet_id" json:"timesheet_id"`
	WorkDate    time.Time `db:"work_date" json:"work_date"`
	Hours       float64   `db:"hours" json:"hours"`
	Description *string   `db:"description" json:"description,omitempty"`
	Task        *string   `db:"task" json:"task,omitempty"`
	Billable    bool      `db:"billable" json:"billable"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TimesheetApproval решение согласующего.
type TimesheetApproval struct {
	ID          uuid.UUID `db:"id" json:"id"`
	TimesheetID uuid.UUID `db:"timesheet_id" json:"timesheet_id"`
	ApproverID  uuid.UUID `db:"approver_id" json:"approver_id"`
	Decision    string    `db:"decision" json:"decision"`
	Comment     *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TimesheetTotals пересчитанные итоги табеля.
type TimesheetTotals struct {
	TotalHours    float64 `db:"total_hours" json:"total_hours"`
	BillableHours float64 `db:"billable_hours" json:"billable_hours"`
	TotalAmount   float64 `db:"-" json:"total_amount"`
}

// DailyHours часы за один день.
type DailyHours struct {
	Day      time.Time `db:"day" json:"day"`
	Hours    float64   `db:"hours" json:"hours"`
	Billable float64   `db:"billable" json:"billable"`
}

// CalculateTimesheetTotals округляет часы и считает сумму по billable часам.
func CalculateTimesheetTotals(totalHours, billableHours, rate float64) TimesheetTotals {
	billable := roundCents(billableHours)
	return TimesheetTotals{
		TotalHours:    roundCents(totalHours),
		BillableHours: billable,
		TotalAmount:   roundCents(billable * rate),
	}
}
