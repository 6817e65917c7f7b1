package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

func TestTutorialRepository_DeleteStepPrunesProgress(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTutorialRepository(db)
	tutorialID, stepID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tutorial_steps`).
		WithArgs(stepID, tutorialID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tutorials SET step_count = GREATEST\(step_count - 1, 0\)`).
		WithArgs(tutorialID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tutorial_progress p SET\s+completed_steps = array_remove\(p.completed_steps, \$2::text\),\s+percent = CASE WHEN t.step_count > 0`).
		WithArgs(tutorialID, stepID.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE tutorial_progress SET completed_at = NOW\(\)`).
		WithArgs(tutorialID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteStep(context.Background(), tutorialID, stepID))
}

func TestTutorialRepository_DeleteStepCompletesProgress(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTutorialRepository(db)
	tutorialID, stepID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tutorial_steps`).
		WithArgs(stepID, tutorialID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tutorials SET step_count`).
		WithArgs(tutorialID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tutorial_progress p SET`).
		WithArgs(tutorialID, stepID.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE tutorial_progress SET completed_at = NOW\(\)\s+WHERE tutorial_id = \$1 AND completed_at IS NULL AND percent >= 100`).
		WithArgs(tutorialID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE tutorials SET completion_count = completion_count \+ \$2`).
		WithArgs(tutorialID, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteStep(context.Background(), tutorialID, stepID))
}

func TestTutorialRepository_DeleteStepMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTutorialRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM tutorial_steps`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteStep(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrStepNotFound)
}

func TestTutorialRepository_SaveProgressFirstCompletion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTutorialRepository(db)
	now := timeNow()
	p := &models.TutorialProgress{UserID: uuid.New(), TutorialID: uuid.New(), Percent: 100, CompletedAt: &now}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tutorial_progress SET completed_steps`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tutorials SET completion_count = completion_count \+ 1`).
		WithArgs(p.TutorialID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveProgress(context.Background(), p, true))
}
