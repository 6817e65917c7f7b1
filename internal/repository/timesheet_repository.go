package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/repository/common"
)

type TimesheetRepository struct {
	db *sqlx.DB
}

func NewTimesheetRepository(db *sqlx.DB) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

func (r *TimesheetRepository) Create(ctx context.Context, t *models.Timesheet) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO timesheets (user_id, project_name, period_start, period_end, status, hourly_rate, notes)
		VALUES ($1, $2, $3, $4, 'draft', $5, $6)
		RETURNING id, status, total_hours, billable_hours, total_amount, created_at, updated_at
	`, t.UserID, t.ProjectName, t.PeriodStart, t.PeriodEnd, t.HourlyRate, t.Notes,
	).Scan(&t.ID, &t.Status, &t.TotalHours, &t.BillableHours, &t.TotalAmount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("timesheet repository: create %w", err)
	}
	return nil
}

func (r *TimesheetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	return common.GetByID[models.Timesheet](ctx, r.db, "timesheets", id, apperror.ErrTimesheetNotFound)
}

func (r *TimesheetRepository) ListEntries(ctx context.Context, timesheetID uuid.UUID) ([]models.TimesheetEntry, error) {
	entries := []models.TimesheetEntry{}
	if err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM timesheet_entries WHERE timesheet_id = $1 ORDER BY work_date, created_at`, timesheetID); err != nil {
		return nil, fmt.Errorf("timesheet repository: list entries %w", err)
	}
	return entries, nil
}

func (r *TimesheetRepository) ListApprovals(ctx context.Context, timesheetID uuid.UUID) ([]models.TimesheetApproval, error) {
	approvals := []models.TimesheetApproval{}
	if err := r.db.SelectContext(ctx, &approvals,
		`SELECT * FROM timesheet_approvals WHERE timesheet_id = $1 ORDER BY created_at DESC`, timesheetID); err != nil {
		return nil, fmt.Errorf("timesheet repository: list approvals %w", err)
	}
	return approvals, nil
}

func (r *TimesheetRepository) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Timesheet, int, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	if status != "" {
		f.Add("status = ?", status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM timesheets`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("timesheet repository: count %w", err)
	}

	query, args := f.Page(`SELECT * FROM timesheets`+f.Where()+` ORDER BY period_start DESC`, limit, offset)
	items := []models.Timesheet{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("timesheet repository: list %w", err)
	}
	return items, total, nil
}

// Update меняет шапку табеля и пересчитывает сумму по новой ставке.
func (r *TimesheetRepository) Update(ctx context.Context, t *models.Timesheet) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE timesheets SET project_name = $2, period_start = $3, period_end = $4,
				hourly_rate = $5, notes = $6, updated_at = NOW()
			WHERE id = $1
		`, t.ID, t.ProjectName, t.PeriodStart, t.PeriodEnd, t.HourlyRate, t.Notes)
		if err != nil {
			return fmt.Errorf("timesheet repository: update %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrTimesheetNotFound); err != nil {
			return err
		}

		totals, err := recalculateTimesheet(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		t.TotalHours, t.BillableHours, t.TotalAmount = totals.TotalHours, totals.BillableHours, totals.TotalAmount
		return nil
	})
}

// Delete удаляет черновик владельца.
func (r *TimesheetRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM timesheets WHERE id = $1 AND user_id = $2 AND status = 'draft'`, id, userID)
	if err != nil {
		return fmt.Errorf("timesheet repository: delete %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrTimesheetNotFound)
}

// AddEntry добавляет запись и пересчитывает итоги в одной транзакции.
func (r *TimesheetRepository) AddEntry(ctx context.Context, e *models.TimesheetEntry) (*models.TimesheetTotals, error) {
	var totals *models.TimesheetTotals
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO timesheet_entries (timesheet_id, work_date, hours, description, task, billable)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, e.TimesheetID, e.WorkDate, e.Hours, e.Description, e.Task, e.Billable).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("timesheet repository: add entry %w", err)
		}
		totals, err = recalculateTimesheet(ctx, tx, e.TimesheetID)
		return err
	})
	return totals, err
}

func (r *TimesheetRepository) UpdateEntry(ctx context.Context, e *models.TimesheetEntry) (*models.TimesheetTotals, error) {
	var totals *models.TimesheetTotals
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE timesheet_entries SET work_date = $3, hours = $4, description = $5, task = $6, billable = $7
			WHERE id = $1 AND timesheet_id = $2
		`, e.ID, e.TimesheetID, e.WorkDate, e.Hours, e.Description, e.Task, e.Billable)
		if err != nil {
			return fmt.Errorf("timesheet repository: update entry %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrEntryNotFound); err != nil {
			return err
		}
		totals, err = recalculateTimesheet(ctx, tx, e.TimesheetID)
		return err
	})
	return totals, err
}

func (r *TimesheetRepository) DeleteEntry(ctx context.Context, timesheetID, entryID uuid.UUID) (*models.TimesheetTotals, error) {
	var totals *models.TimesheetTotals
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM timesheet_entries WHERE id = $1 AND timesheet_id = $2`, entryID, timesheetID)
		if err != nil {
			return fmt.Errorf("timesheet repository: delete entry %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrEntryNotFound); err != nil {
			return err
		}
		totals, err = recalculateTimesheet(ctx, tx, timesheetID)
		return err
	})
	return totals, err
}

// recalculateTimesheet пересчитывает часы и сумму по billable часам и ставке.
func recalculateTimesheet(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.TimesheetTotals, error) {
	var row struct {
		TotalHours    float64 `db:"total_hours"`
		BillableHours float64 `db:"billable_hours"`
		HourlyRate    float64 `db:"hourly_rate"`
	}
	err := tx.GetContext(ctx, &row, `
		SELECT
			COALESCE((SELECT SUM(hours) FROM timesheet_entries WHERE timesheet_id = t.id), 0) AS total_hours,
			COALESCE((SELECT SUM(hours) FROM timesheet_entries WHERE timesheet_id = t.id AND billable), 0) AS billable_hours,
			t.hourly_rate
		FROM timesheets t WHERE t.id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrTimesheetNotFound
		}
		return nil, fmt.Errorf("timesheet repository: totals %w", err)
	}

	totals := models.CalculateTimesheetTotals(row.TotalHours, row.BillableHours, row.HourlyRate)
	if _, err := tx.ExecContext(ctx, `
		UPDATE timesheets SET total_hours = $2, billable_hours = $3, total_amount = $4, updated_at = NOW()
		WHERE id = $1
	`, id, totals.TotalHours, totals.BillableHours, totals.TotalAmount); err != nil {
		return nil, fmt.Errorf("timesheet repository: write totals %w", err)
	}
	return &totals, nil
}

// Submit отправляет черновик или отклонённый табель на согласование.
func (r *TimesheetRepository) Submit(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	var t models.Timesheet
	err := r.db.GetContext(ctx, &t, `
		UPDATE timesheets SET status = 'submitted', submitted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'rejected')
		RETURNING *
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Conflict("табель уже отправлен на согласование")
		}
		return nil, fmt.Errorf("timesheet repository: submit %w", err)
	}
	return &t, nil
}

// Decide фиксирует решение по отправленному табелю вместе с записью согласования.
func (r *TimesheetRepository) Decide(ctx context.Context, approval *models.TimesheetApproval) (*models.Timesheet, error) {
	var t models.Timesheet
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &t, `
			UPDATE timesheets SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'submitted'
			RETURNING *
		`, approval.TimesheetID, approval.Decision)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.Conflict("согласовать можно только отправленный табель")
			}
			return fmt.Errorf("timesheet repository: decide %w", err)
		}

		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO timesheet_approvals (timesheet_id, approver_id, decision, comment)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, approval.TimesheetID, approval.ApproverID, approval.Decision, approval.Comment,
		).Scan(&approval.ID, &approval.CreatedAt); err != nil {
			return fmt.Errorf("timesheet repository: approval %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CanApprove сообщает, управляет ли approver командой, где состоит owner.
func (r *TimesheetRepository) CanApprove(ctx context.Context, approverID, ownerID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM team_members a
			JOIN team_members o ON o.team_id = a.team_id
			WHERE a.user_id = $1 AND a.role IN ('owner', 'admin') AND o.user_id = $2
		)
	`, approverID, ownerID)
	if err != nil {
		return false, fmt.Errorf("timesheet repository: can approve %w", err)
	}
	return ok, nil
}

// DailyHours суммирует часы пользователя по дням в диапазоне [from, to].
func (r *TimesheetRepository) DailyHours(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.DailyHours, error) {
	rows := []models.DailyHours{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT e.work_date AS day,
			SUM(e.hours) AS hours,
			COALESCE(SUM(e.hours) FILTER (WHERE e.billable), 0) AS billable
		FROM timesheet_entries e
		JOIN timesheets t ON t.id = e.timesheet_id
		WHERE t.user_id = $1 AND e.work_date BETWEEN $2 AND $3
		GROUP BY e.work_date
		ORDER BY e.work_date
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("timesheet repository: daily hours %w", err)
	}
	return rows, nil
}
