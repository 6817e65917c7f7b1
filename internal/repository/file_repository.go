package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/repository/common"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, f *models.File) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO files (user_id, name, folder, mime_type, size, storage_key, storage_backend)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, f.UserID, f.Name, f.Folder, f.MimeType, f.Size, f.StorageKey, f.StorageBackend).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("file repository: create %w", err)
	}
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	return common.GetByID[models.File](ctx, r.db, "files", id, apperror.ErrFileNotFound)
}

// List возвращает файлы владельца. Корзина и обычные файлы не смешиваются.
func (r *FileRepository) List(ctx context.Context, userID uuid.UUID, filter models.FileFilter) ([]models.File, int, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	f.Add("is_trashed = ?", filter.Trashed)
	if filter.Folder != "" {
		f.Add("folder = ?", filter.Folder)
	}
	if filter.Starred != nil {
		f.Add("is_starred = ?", *filter.Starred)
	}
	if filter.Search != "" {
		f.Add("name ILIKE ?", "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM files`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("file repository: count %w", err)
	}

	query, args := f.Page(`SELECT * FROM files`+f.Where()+` ORDER BY created_at DESC`, filter.Limit, filter.Offset)
	items := []models.File{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("file repository: list %w", err)
	}
	return items, total, nil
}

func (r *FileRepository) Update(ctx context.Context, f *models.File) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE files SET name = $2, folder = $3, is_starred = $4, is_trashed = $5, trashed_at = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, f.ID, f.Name, f.Folder, f.IsStarred, f.IsTrashed, f.TrashedAt).Scan(&f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrFileNotFound
		}
		return fmt.Errorf("file repository: update %w", err)
	}
	return nil
}

func (r *FileRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "files", "user_id", id, userID, apperror.ErrFileNotFound)
}

// DeleteTrashed удаляет всю корзину владельца и возвращает удалённые строки,
// чтобы вызывающий мог убрать содержимое из хранилища.
func (r *FileRepository) DeleteTrashed(ctx context.Context, userID uuid.UUID) ([]models.File, error) {
	items := []models.File{}
	err := r.db.SelectContext(ctx, &items,
		`DELETE FROM files WHERE user_id = $1 AND is_trashed RETURNING *`, userID)
	if err != nil {
		return nil, fmt.Errorf("file repository: empty trash %w", err)
	}
	return items, nil
}

// Usage считает занятое место по группам MIME (image, audio, ...).
func (r *FileRepository) Usage(ctx context.Context, userID uuid.UUID) ([]models.MimeGroupUsage, error) {
	rows := []models.MimeGroupUsage{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT split_part(mime_type, '/', 1) AS mime_group,
			COALESCE(SUM(size), 0) AS bytes,
			COUNT(*) AS count
		FROM files
		WHERE user_id = $1
		GROUP BY 1
		ORDER BY 2 DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("file repository: usage %w", err)
	}
	return rows, nil
}
