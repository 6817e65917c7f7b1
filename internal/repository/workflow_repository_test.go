package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

var scheduleColumns = []string{"id", "workflow_id", "cron_expression", "timezone", "is_enabled", "next_run_at", "last_run_at", "created_at"}

func TestWorkflowRepository_ClaimDueSchedules(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)
	now := timeNow()
	good, broken := uuid.New(), uuid.New()
	wfID := uuid.New()
	nextRun := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF s SKIP LOCKED`).
		WithArgs(now, 10).
		WillReturnRows(sqlmock.NewRows(scheduleColumns).
			AddRow(good, wfID, "0 * * * *", "UTC", true, now, nil, now).
			AddRow(broken, wfID, "bad", "UTC", true, now, nil, now))
	mock.ExpectExec(`UPDATE workflow_schedules SET last_run_at`).
		WithArgs(good, now, nextRun).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE workflow_schedules SET is_enabled = FALSE`).
		WithArgs(broken).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := repo.ClaimDueSchedules(context.Background(), now, 10, func(s models.WorkflowSchedule) (time.Time, error) {
		if s.CronExpression == "bad" {
			return time.Time{}, errors.New("bad cron")
		}
		return nextRun, nil
	})

	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, good, claimed[0].ID)
	assert.Equal(t, nextRun, *claimed[0].NextRunAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepository_FinishExecution(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)
	exec := &models.WorkflowExecution{
		ID:         uuid.New(),
		WorkflowID: uuid.New(),
		Status:     models.ExecutionStatusCompleted,
		Output:     []byte(`{}`),
		Steps:      []byte(`[]`),
	}
	finished := timeNow()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE workflow_executions`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "finished_at"}).AddRow("cancelled", finished))
	mock.ExpectExec(`UPDATE workflows SET run_count = run_count \+ 1`).
		WithArgs(exec.WorkflowID, finished).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.FinishExecution(context.Background(), exec))
	assert.Equal(t, models.ExecutionStatusCancelled, exec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepository_CancelExecution_Finished(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE workflow_executions SET status = 'cancelled'`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.CancelExecution(context.Background(), id)
	assert.True(t, apperror.IsConflict(err))
}
