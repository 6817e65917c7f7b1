package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/repository/common"
)

type SEORepository struct {
	db *sqlx.DB
}

func NewSEORepository(db *sqlx.DB) *SEORepository {
	return &SEORepository{db: db}
}

// Create сохраняет результат анализа.
func (r *SEORepository) Create(ctx context.Context, a *models.SEOAnalysis) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO seo_analyses (content_id, user_id, keyword, score, grade, readability, content_hash, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, a.ContentID, a.UserID, a.Keyword, a.Score, a.Grade, a.Readability, a.ContentHash, a.Report,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return apperror.ErrContentNotFound
		}
		return fmt.Errorf("seo repository: create %w", err)
	}
	return nil
}

// ListByContent возвращает анализы материала, новые первыми.
func (r *SEORepository) ListByContent(ctx context.Context, contentID uuid.UUID, limit, offset int) ([]models.SEOAnalysis, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM seo_analyses WHERE content_id = $1`, contentID); err != nil {
		return nil, 0, fmt.Errorf("seo repository: count %w", err)
	}

	items := []models.SEOAnalysis{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM seo_analyses WHERE content_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, contentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("seo repository: list %w", err)
	}
	return items, total, nil
}
