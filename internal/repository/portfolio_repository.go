package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/repository/common"
)

// PortfolioRepository отвечает за работы портфолио и лайки.
type PortfolioRepository struct {
	db *sqlx.DB
}

func NewPortfolioRepository(db *sqlx.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Create добавляет работу в конец списка владельца.
func (r *PortfolioRepository) Create(ctx context.Context, item *models.PortfolioItem) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO portfolio_items (user_id, title, description, category, tags, cover_file_id, project_url, client_name, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM portfolio_items WHERE user_id = $1))
		RETURNING id, position, created_at, updated_at
	`, item.UserID, item.Title, item.Description, item.Category, item.Tags, item.CoverFileID, item.ProjectURL, item.ClientName).
		Scan(&item.ID, &item.Position, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return apperror.ErrFileNotFound
		}
		return fmt.Errorf("portfolio repository: create %w", err)
	}
	return nil
}

func (r *PortfolioRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PortfolioItem, error) {
	return common.GetByID[models.PortfolioItem](ctx, r.db, "portfolio_items", id, apperror.ErrPortfolioNotFound)
}

func (r *PortfolioRepository) List(ctx context.Context, filter models.PortfolioFilter) ([]models.PortfolioItem, int, error) {
	var f common.Filter
	if filter.UserID != nil {
		f.Add("user_id = ?", *filter.UserID)
	}
	if filter.Category != "" {
		f.Add("category = ?", filter.Category)
	}
	if filter.Featured != nil {
		f.Add("is_featured = ?", *filter.Featured)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM portfolio_items`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("portfolio repository: count %w", err)
	}

	query, args := f.Page(`SELECT * FROM portfolio_items`+f.Where()+` ORDER BY position, created_at DESC`, filter.Limit, filter.Offset)
	items := []models.PortfolioItem{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("portfolio repository: list %w", err)
	}
	return items, total, nil
}

func (r *PortfolioRepository) Update(ctx context.Context, item *models.PortfolioItem) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE portfolio_items
		SET title = $2, description = $3, category = $4, tags = $5, cover_file_id = $6,
			project_url = $7, client_name = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, item.ID, item.Title, item.Description, item.Category, item.Tags, item.CoverFileID, item.ProjectURL, item.ClientName).
		Scan(&item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrPortfolioNotFound
		}
		if common.IsForeignKeyViolation(err) {
			return apperror.ErrFileNotFound
		}
		return fmt.Errorf("portfolio repository: update %w", err)
	}
	return nil
}

func (r *PortfolioRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "portfolio_items", "user_id", id, userID, apperror.ErrPortfolioNotFound)
}

func (r *PortfolioRepository) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (*models.PortfolioItem, error) {
	var item models.PortfolioItem
	err := r.db.GetContext(ctx, &item, `
		UPDATE portfolio_items SET is_featured = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, featured)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("portfolio repository: set featured %w", err)
	}
	return &item, nil
}

// Reorder расставляет position по порядку ids. Все ids должны принадлежать
// владельцу, иначе изменения откатываются.
func (r *PortfolioRepository) Reorder(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE portfolio_items p SET position = v.ord - 1, updated_at = NOW()
			FROM unnest($2::uuid[]) WITH ORDINALITY AS v(id, ord)
			WHERE p.id = v.id AND p.user_id = $1
		`, userID, pq.Array(raw))
		if err != nil {
			return fmt.Errorf("portfolio repository: reorder %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("portfolio repository: reorder %w", err)
		}
		if int(n) != len(ids) {
			return apperror.ErrPortfolioNotFound
		}
		return nil
	})
}

func (r *PortfolioRepository) IncrementViews(ctx context.Context, id uuid.UUID) (int, error) {
	var views int
	err := r.db.GetContext(ctx, &views,
		`UPDATE portfolio_items SET view_count = view_count + 1 WHERE id = $1 RETURNING view_count`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.ErrPortfolioNotFound
		}
		return 0, fmt.Errorf("portfolio repository: increment views %w", err)
	}
	return views, nil
}

// Like ставит лайк один раз; повторный вызов возвращает текущий счётчик.
func (r *PortfolioRepository) Like(ctx context.Context, userID, itemID uuid.UUID) (int, error) {
	return r.toggleLike(ctx, itemID,
		`INSERT INTO portfolio_likes (user_id, item_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		`UPDATE portfolio_items SET like_count = like_count + 1 WHERE id = $1 RETURNING like_count`,
		userID)
}

// Unlike снимает лайк, если он был.
func (r *PortfolioRepository) Unlike(ctx context.Context, userID, itemID uuid.UUID) (int, error) {
	return r.toggleLike(ctx, itemID,
		`DELETE FROM portfolio_likes WHERE user_id = $1 AND item_id = $2`,
		`UPDATE portfolio_items SET like_count = GREATEST(like_count - 1, 0) WHERE id = $1 RETURNING like_count`,
		userID)
}

func (r *PortfolioRepository) toggleLike(ctx context.Context, itemID uuid.UUID, change, counter string, userID uuid.UUID) (int, error) {
	var likes int
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, change, userID, itemID)
		if err != nil {
			if common.IsForeignKeyViolation(err) {
				return apperror.ErrPortfolioNotFound
			}
			return fmt.Errorf("portfolio repository: like %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("portfolio repository: like %w", err)
		}

		query := counter
		if n == 0 {
			query = `SELECT like_count FROM portfolio_items WHERE id = $1`
		}
		if err := tx.GetContext(ctx, &likes, query, itemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrPortfolioNotFound
			}
			return fmt.Errorf("portfolio repository: like count %w", err)
		}
		return nil
	})
	return likes, err
}

func (r *PortfolioRepository) HasLiked(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	var liked bool
	err := r.db.GetContext(ctx, &liked,
		`SELECT EXISTS (SELECT 1 FROM portfolio_likes WHERE user_id = $1 AND item_id = $2)`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("portfolio repository: has liked %w", err)
	}
	return liked, nil
}

func (r *PortfolioRepository) Stats(ctx context.Context, userID uuid.UUID) (*models.PortfolioStats, error) {
	var stats models.PortfolioStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS items,
			COUNT(*) FILTER (WHERE is_featured) AS featured,
			COALESCE(SUM(view_count), 0) AS views,
			COALESCE(SUM(like_count), 0) AS likes
		FROM portfolio_items
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("portfolio repository: stats %w", err)
	}
	return &stats, nil
}
