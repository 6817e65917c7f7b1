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

type WorkflowRepository struct {
	db *sqlx.DB
}

func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) Create(ctx context.Context, w *models.Workflow) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO workflows (user_id, name, description, trigger_type, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, w.UserID, w.Name, w.Description, w.TriggerType, w.IsActive).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("workflow repository: create %w", err)
	}
	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	return common.GetByID[models.Workflow](ctx, r.db, "workflows", id, apperror.ErrWorkflowNotFound)
}

func (r *WorkflowRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Workflow, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM workflows WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("workflow repository: count %w", err)
	}

	items := []models.Workflow{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM workflows WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("workflow repository: list %w", err)
	}
	return items, total, nil
}

func (r *WorkflowRepository) Update(ctx context.Context, w *models.Workflow) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE workflows SET name = $2, description = $3, trigger_type = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, w.ID, w.Name, w.Description, w.TriggerType, w.IsActive).Scan(&w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrWorkflowNotFound
		}
		return fmt.Errorf("workflow repository: update %w", err)
	}
	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "workflows", "user_id", id, userID, apperror.ErrWorkflowNotFound)
}

func (r *WorkflowRepository) ListActions(ctx context.Context, workflowID uuid.UUID) ([]models.WorkflowAction, error) {
	actions := []models.WorkflowAction{}
	err := r.db.SelectContext(ctx, &actions,
		`SELECT * FROM workflow_actions WHERE workflow_id = $1 ORDER BY position`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow repository: list actions %w", err)
	}
	return actions, nil
}

// SetActions заменяет список действий сценария в одной транзакции.
func (r *WorkflowRepository) SetActions(ctx context.Context, workflowID uuid.UUID, actions []models.WorkflowAction) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_actions WHERE workflow_id = $1`, workflowID); err != nil {
			return fmt.Errorf("workflow repository: clear actions %w", err)
		}
		inserter := common.NewBatchInserter(tx,
			`INSERT INTO workflow_actions (workflow_id, position, type, config, continue_on_error)`, 5, 100)
		for _, a := range actions {
			if err := inserter.Add(ctx, workflowID, a.Position, a.Type, a.Config, a.ContinueOnError); err != nil {
				return fmt.Errorf("workflow repository: insert actions %w", err)
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return fmt.Errorf("workflow repository: insert actions %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE workflows SET updated_at = NOW() WHERE id = $1`, workflowID); err != nil {
			return fmt.Errorf("workflow repository: touch %w", err)
		}
		return nil
	})
}

// CreateExecution создаёт запуск в статусе running.
func (r *WorkflowRepository) CreateExecution(ctx context.Context, e *models.WorkflowExecution) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO workflow_executions (workflow_id, user_id, status, trigger, input, steps)
		VALUES ($1, $2, $3, $4, $5, '[]')
		RETURNING id, started_at
	`, e.WorkflowID, e.UserID, e.Status, e.Trigger, e.Input).Scan(&e.ID, &e.StartedAt)
	if err != nil {
		return fmt.Errorf("workflow repository: create execution %w", err)
	}
	return nil
}

func (r *WorkflowRepository) GetExecution(ctx context.Context, id uuid.UUID) (*models.WorkflowExecution, error) {
	return common.GetByID[models.WorkflowExecution](ctx, r.db, "workflow_executions", id, apperror.ErrExecutionNotFound)
}

func (r *WorkflowRepository) ListExecutions(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]models.WorkflowExecution, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM workflow_executions WHERE workflow_id = $1`, workflowID); err != nil {
		return nil, 0, fmt.Errorf("workflow repository: count executions %w", err)
	}

	items := []models.WorkflowExecution{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM workflow_executions WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, workflowID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("workflow repository: list executions %w", err)
	}
	return items, total, nil
}

// FinishExecution записывает итог запуска и обновляет счётчики сценария.
// Отменённый запуск сохраняет статус cancelled.
func (r *WorkflowRepository) FinishExecution(ctx context.Context, e *models.WorkflowExecution) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			UPDATE workflow_executions
			SET status = CASE WHEN status = 'cancelled' THEN status ELSE $2 END,
				output = $3, steps = $4, error = $5, finished_at = NOW()
			WHERE id = $1
			RETURNING status, finished_at
		`, e.ID, e.Status, e.Output, e.Steps, e.Error).Scan(&e.Status, &e.FinishedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrExecutionNotFound
			}
			return fmt.Errorf("workflow repository: finish execution %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE workflows SET run_count = run_count + 1, last_run_at = $2 WHERE id = $1
		`, e.WorkflowID, e.FinishedAt); err != nil {
			return fmt.Errorf("workflow repository: run count %w", err)
		}
		return nil
	})
}

// CancelExecution отменяет запуск в статусе pending или running.
func (r *WorkflowRepository) CancelExecution(ctx context.Context, id uuid.UUID) (*models.WorkflowExecution, error) {
	var e models.WorkflowExecution
	err := r.db.GetContext(ctx, &e, `
		UPDATE workflow_executions SET status = 'cancelled', finished_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'running')
		RETURNING *
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Conflict("запуск уже завершён")
		}
		return nil, fmt.Errorf("workflow repository: cancel execution %w", err)
	}
	return &e, nil
}

func (r *WorkflowRepository) CreateSchedule(ctx context.Context, s *models.WorkflowSchedule) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO workflow_schedules (workflow_id, cron_expression, timezone, is_enabled, next_run_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, s.WorkflowID, s.CronExpression, s.Timezone, s.IsEnabled, s.NextRunAt).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("workflow repository: create schedule %w", err)
	}
	return nil
}

func (r *WorkflowRepository) GetSchedule(ctx context.Context, id uuid.UUID) (*models.WorkflowSchedule, error) {
	return common.GetByID[models.WorkflowSchedule](ctx, r.db, "workflow_schedules", id, apperror.ErrScheduleNotFound)
}

func (r *WorkflowRepository) ListSchedules(ctx context.Context, workflowID uuid.UUID) ([]models.WorkflowSchedule, error) {
	items := []models.WorkflowSchedule{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM workflow_schedules WHERE workflow_id = $1 ORDER BY created_at`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow repository: list schedules %w", err)
	}
	return items, nil
}

func (r *WorkflowRepository) UpdateSchedule(ctx context.Context, s *models.WorkflowSchedule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_schedules SET cron_expression = $3, timezone = $4, is_enabled = $5, next_run_at = $6
		WHERE id = $1 AND workflow_id = $2
	`, s.ID, s.WorkflowID, s.CronExpression, s.Timezone, s.IsEnabled, s.NextRunAt)
	if err != nil {
		return fmt.Errorf("workflow repository: update schedule %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrScheduleNotFound)
}

func (r *WorkflowRepository) DeleteSchedule(ctx context.Context, workflowID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM workflow_schedules WHERE id = $1 AND workflow_id = $2`, id, workflowID)
	if err != nil {
		return fmt.Errorf("workflow repository: delete schedule %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrScheduleNotFound)
}

// ClaimDueSchedules блокирует созревшие расписания (SKIP LOCKED, чтобы
// несколько экземпляров не взяли одно и то же), сдвигает next_run_at через
// next и возвращает их. Расписание, для которого next вернул ошибку,
// выключается.
func (r *WorkflowRepository) ClaimDueSchedules(ctx context.Context, now time.Time, limit int, next func(models.WorkflowSchedule) (time.Time, error)) ([]models.WorkflowSchedule, error) {
	var claimed []models.WorkflowSchedule
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		due := []models.WorkflowSchedule{}
		if err := tx.SelectContext(ctx, &due, `
			SELECT s.* FROM workflow_schedules s
			JOIN workflows w ON w.id = s.workflow_id
			WHERE s.is_enabled AND w.is_active AND s.next_run_at <= $1
			ORDER BY s.next_run_at
			LIMIT $2
			FOR UPDATE OF s SKIP LOCKED
		`, now, limit); err != nil {
			return fmt.Errorf("workflow repository: select due %w", err)
		}

		for _, s := range due {
			nextRun, err := next(s)
			if err != nil {
				if _, err := tx.ExecContext(ctx,
					`UPDATE workflow_schedules SET is_enabled = FALSE, next_run_at = NULL WHERE id = $1`, s.ID); err != nil {
					return fmt.Errorf("workflow repository: disable schedule %w", err)
				}
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE workflow_schedules SET last_run_at = $2, next_run_at = $3 WHERE id = $1`,
				s.ID, now, nextRun); err != nil {
				return fmt.Errorf("workflow repository: advance schedule %w", err)
			}
			s.LastRunAt = &now
			s.NextRunAt = &nextRun
			claimed = append(claimed, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
