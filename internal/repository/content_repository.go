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

var errSlugTaken = apperror.Conflict("материал с таким slug уже существует")

type ContentRepository struct {
	db *sqlx.DB
}

func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create создаёт материал.
func (r *ContentRepository) Create(ctx context.Context, c *models.Content) error {
	return insertContent(ctx, r.db, c)
}

func insertContent(ctx context.Context, q sqlx.QueryerContext, c *models.Content) error {
	query := `
		INSERT INTO content (user_id, title, slug, type, status, body, excerpt, tags,
			seo_title, seo_description, word_count, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, version, view_count, created_at, updated_at
	`
	err := q.QueryRowxContext(ctx, query,
		c.UserID, c.Title, c.Slug, c.Type, c.Status, c.Body, c.Excerpt, c.Tags,
		c.SEOTitle, c.SEODescription, c.WordCount, c.PublishedAt,
	).Scan(&c.ID, &c.Version, &c.ViewCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return errSlugTaken
		}
		return fmt.Errorf("content repository: create %w", err)
	}
	return nil
}

// GetByID возвращает материал по ID.
func (r *ContentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Content, error) {
	return common.GetByID[models.Content](ctx, r.db, "content", id, apperror.ErrContentNotFound)
}

// List возвращает материалы пользователя по фильтру.
func (r *ContentRepository) List(ctx context.Context, userID uuid.UUID, filter models.ContentFilter) ([]models.Content, int, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	if filter.Status != "" {
		f.Add("status = ?", filter.Status)
	}
	if filter.Type != "" {
		f.Add("type = ?", filter.Type)
	}
	if filter.Search != "" {
		f.Add("(title ILIKE ? OR body ILIKE ?)", "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM content`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("content repository: count %w", err)
	}

	query, args := f.Page(`SELECT * FROM content`+f.Where()+` ORDER BY updated_at DESC`, filter.Limit, filter.Offset)
	items := []models.Content{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("content repository: list %w", err)
	}
	return items, total, nil
}

// UpdateWithVersion сохраняет текущее состояние в content_versions и
// применяет изменения с увеличением версии в одной транзакции.
func (r *ContentRepository) UpdateWithVersion(ctx context.Context, c *models.Content, editorID uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var current models.Content
		if err := tx.GetContext(ctx, &current, `SELECT * FROM content WHERE id = $1 FOR UPDATE`, c.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrContentNotFound
			}
			return fmt.Errorf("content repository: lock %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO content_versions (content_id, version, title, body, created_by)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (content_id, version) DO NOTHING
		`, current.ID, current.Version, current.Title, current.Body, editorID); err != nil {
			return fmt.Errorf("content repository: snapshot %w", err)
		}

		err := tx.QueryRowxContext(ctx, `
			UPDATE content SET title = $2, slug = $3, type = $4, body = $5, excerpt = $6, tags = $7,
				seo_title = $8, seo_description = $9, word_count = $10,
				version = version + 1, updated_at = NOW()
			WHERE id = $1
			RETURNING version, updated_at
		`, c.ID, c.Title, c.Slug, c.Type, c.Body, c.Excerpt, c.Tags,
			c.SEOTitle, c.SEODescription, c.WordCount,
		).Scan(&c.Version, &c.UpdatedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return errSlugTaken
			}
			return fmt.Errorf("content repository: update %w", err)
		}
		return nil
	})
}

// SetStatus меняет статус материала.
func (r *ContentRepository) SetStatus(ctx context.Context, id uuid.UUID, status string, publishedAt *time.Time) (*models.Content, error) {
	var c models.Content
	err := r.db.GetContext(ctx, &c, `
		UPDATE content SET status = $2, published_at = COALESCE($3, published_at), updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, status, publishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrContentNotFound
		}
		return nil, fmt.Errorf("content repository: set status %w", err)
	}
	return &c, nil
}

// Delete удаляет материал владельца вместе с блоками и версиями.
func (r *ContentRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "content", "user_id", id, userID, apperror.ErrContentNotFound)
}

// Duplicate создаёт копию материала вместе с блоками.
func (r *ContentRepository) Duplicate(ctx context.Context, srcID uuid.UUID, dst *models.Content) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := insertContent(ctx, tx, dst); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO content_blocks (content_id, type, data, position)
			SELECT $2, type, data, position FROM content_blocks WHERE content_id = $1
		`, srcID, dst.ID); err != nil {
			return fmt.Errorf("content repository: copy blocks %w", err)
		}
		return nil
	})
}

// IncrementViews увеличивает счётчик просмотров опубликованного материала.
func (r *ContentRepository) IncrementViews(ctx context.Context, id uuid.UUID) (int, error) {
	var views int
	err := r.db.GetContext(ctx, &views, `
		UPDATE content SET view_count = view_count + 1 WHERE id = $1 AND status = 'published'
		RETURNING view_count
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.ErrContentNotFound
		}
		return 0, fmt.Errorf("content repository: increment views %w", err)
	}
	return views, nil
}

// ListBlocks возвращает блоки материала по порядку.
func (r *ContentRepository) ListBlocks(ctx context.Context, contentID uuid.UUID) ([]models.ContentBlock, error) {
	blocks := []models.ContentBlock{}
	err := r.db.SelectContext(ctx, &blocks,
		`SELECT * FROM content_blocks WHERE content_id = $1 ORDER BY position, created_at`, contentID)
	if err != nil {
		return nil, fmt.Errorf("content repository: list blocks %w", err)
	}
	return blocks, nil
}

// AddBlock добавляет блок в конец материала.
func (r *ContentRepository) AddBlock(ctx context.Context, b *models.ContentBlock) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO content_blocks (content_id, type, data, position)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM content_blocks WHERE content_id = $1))
		RETURNING id, position, created_at, updated_at
	`, b.ContentID, b.Type, b.Data).Scan(&b.ID, &b.Position, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("content repository: add block %w", err)
	}
	return nil
}

// UpdateBlock меняет тип и данные блока.
func (r *ContentRepository) UpdateBlock(ctx context.Context, b *models.ContentBlock) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE content_blocks SET type = $3, data = $4, updated_at = NOW()
		WHERE id = $1 AND content_id = $2
		RETURNING position, created_at, updated_at
	`, b.ID, b.ContentID, b.Type, b.Data).Scan(&b.Position, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrBlockNotFound
		}
		return fmt.Errorf("content repository: update block %w", err)
	}
	return nil
}

// DeleteBlock удаляет блок и сдвигает последующие.
func (r *ContentRepository) DeleteBlock(ctx context.Context, contentID, blockID uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var position int
		err := tx.GetContext(ctx, &position,
			`DELETE FROM content_blocks WHERE id = $1 AND content_id = $2 RETURNING position`, blockID, contentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrBlockNotFound
			}
			return fmt.Errorf("content repository: delete block %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE content_blocks SET position = position - 1 WHERE content_id = $1 AND position > $2`,
			contentID, position); err != nil {
			return fmt.Errorf("content repository: shift blocks %w", err)
		}
		return nil
	})
}

// ReorderBlocks задаёт порядок блоков; ids должны перечислять все блоки материала.
func (r *ContentRepository) ReorderBlocks(ctx context.Context, contentID uuid.UUID, ids []uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM content_blocks WHERE content_id = $1`, contentID); err != nil {
			return fmt.Errorf("content repository: count blocks %w", err)
		}
		if count != len(ids) {
			return apperror.Validation("порядок должен включать все блоки материала")
		}

		for pos, id := range ids {
			res, err := tx.ExecContext(ctx,
				`UPDATE content_blocks SET position = $3, updated_at = NOW() WHERE id = $1 AND content_id = $2`,
				id, contentID, pos)
			if err != nil {
				return fmt.Errorf("content repository: reorder %w", err)
			}
			if err := common.ExpectAffected(res, apperror.ErrBlockNotFound); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListVersions возвращает историю версий от новых к старым.
func (r *ContentRepository) ListVersions(ctx context.Context, contentID uuid.UUID) ([]models.ContentVersion, error) {
	versions := []models.ContentVersion{}
	err := r.db.SelectContext(ctx, &versions,
		`SELECT * FROM content_versions WHERE content_id = $1 ORDER BY version DESC`, contentID)
	if err != nil {
		return nil, fmt.Errorf("content repository: list versions %w", err)
	}
	return versions, nil
}

// GetVersion возвращает конкретную версию.
func (r *ContentRepository) GetVersion(ctx context.Context, contentID uuid.UUID, version int) (*models.ContentVersion, error) {
	var v models.ContentVersion
	err := r.db.GetContext(ctx, &v,
		`SELECT * FROM content_versions WHERE content_id = $1 AND version = $2`, contentID, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrVersionNotFound
		}
		return nil, fmt.Errorf("content repository: get version %w", err)
	}
	return &v, nil
}
