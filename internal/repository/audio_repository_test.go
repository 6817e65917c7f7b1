package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

func TestAudioRepository_AddTrack_IncrementsCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAudioRepository(db)
	projectID, fileID := uuid.New(), uuid.New()
	track := &models.AudioTrack{ProjectID: projectID, Name: "drums", FileID: &fileID, Volume: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO audio_tracks`).
		WithArgs(projectID, "drums", sqlmock.AnyArg(), 1.0, 0.0, false, false, 0.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "position", "created_at"}).AddRow(uuid.New(), 3, timeNow()))
	mock.ExpectExec(`UPDATE audio_projects SET track_count = GREATEST\(track_count \+ \$2, 0\)`).
		WithArgs(projectID, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.AddTrack(context.Background(), track))
	assert.Equal(t, 3, track.Position)
}

func TestAudioRepository_AddTrack_MissingFile(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAudioRepository(db)
	fileID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO audio_tracks`).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	err := repo.AddTrack(context.Background(), &models.AudioTrack{ProjectID: uuid.New(), FileID: &fileID})
	assert.ErrorIs(t, err, apperror.ErrFileNotFound)
}

func TestAudioRepository_DeleteTrack_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAudioRepository(db)
	projectID, id := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM audio_tracks WHERE id = \$1 AND project_id = \$2`).
		WithArgs(id, projectID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteTrack(context.Background(), projectID, id)
	assert.ErrorIs(t, err, apperror.ErrTrackNotFound)
}

func TestAudioRepository_DeleteTrack_DecrementsCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAudioRepository(db)
	projectID, id := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM audio_tracks`).
		WithArgs(id, projectID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE audio_projects SET track_count`).
		WithArgs(projectID, -1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteTrack(context.Background(), projectID, id))
}
