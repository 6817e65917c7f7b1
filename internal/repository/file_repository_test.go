package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/models"
)

func TestFileRepository_List_Filters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)
	userID := uuid.New()
	starred := true

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM files WHERE user_id = \$1 AND is_trashed = \$2 AND folder = \$3 AND is_starred = \$4`).
		WithArgs(userID, false, "/docs", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM files WHERE .* ORDER BY created_at DESC LIMIT \$5 OFFSET \$6`).
		WithArgs(userID, false, "/docs", true, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name"}).AddRow(uuid.New(), userID, "a.pdf"))

	items, total, err := repo.List(context.Background(), userID, models.FileFilter{
		Folder: "/docs", Starred: &starred, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}

func TestFileRepository_DeleteTrashed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`DELETE FROM files WHERE user_id = \$1 AND is_trashed RETURNING \*`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_key"}).
			AddRow(uuid.New(), "u/a.png").
			AddRow(uuid.New(), "u/b.png"))

	removed, err := repo.DeleteTrashed(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, "u/b.png", removed[1].StorageKey)
}

func TestFileRepository_Usage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`split_part\(mime_type, '/', 1\) AS mime_group`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"mime_group", "bytes", "count"}).
			AddRow("image", 2048, 2).
			AddRow("audio", 1024, 1))

	rows, err := repo.Usage(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "image", rows[0].Group)
	assert.Equal(t, int64(1024), rows[1].Bytes)
}
