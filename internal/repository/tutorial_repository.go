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

var errTutorialSlugTaken = apperror.Conflict("урок с таким slug уже существует")

type TutorialRepository struct {
	db *sqlx.DB
}

func NewTutorialRepository(db *sqlx.DB) *TutorialRepository {
	return &TutorialRepository{db: db}
}

func (r *TutorialRepository) Create(ctx context.Context, t *models.Tutorial) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO tutorials (author_id, title, slug, description, category, difficulty, estimated_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, t.AuthorID, t.Title, t.Slug, t.Description, t.Category, t.Difficulty, t.EstimatedMinutes).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return errTutorialSlugTaken
		}
		return fmt.Errorf("tutorial repository: create %w", err)
	}
	return nil
}

func (r *TutorialRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tutorial, error) {
	return common.GetByID[models.Tutorial](ctx, r.db, "tutorials", id, apperror.ErrTutorialNotFound)
}

// ListPublished возвращает опубликованные уроки по категории и сложности.
func (r *TutorialRepository) ListPublished(ctx context.Context, category, difficulty string, limit, offset int) ([]models.Tutorial, int, error) {
	var f common.Filter
	f.AddRaw("is_published = TRUE")
	if category != "" {
		f.Add("category = ?", category)
	}
	if difficulty != "" {
		f.Add("difficulty = ?", difficulty)
	}
	return r.list(ctx, f, `completion_count DESC, created_at DESC`, limit, offset)
}

func (r *TutorialRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Tutorial, int, error) {
	var f common.Filter
	f.Add("author_id = ?", authorID)
	return r.list(ctx, f, `updated_at DESC`, limit, offset)
}

func (r *TutorialRepository) list(ctx context.Context, f common.Filter, order string, limit, offset int) ([]models.Tutorial, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM tutorials`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("tutorial repository: count %w", err)
	}

	query, args := f.Page(`SELECT * FROM tutorials`+f.Where()+` ORDER BY `+order, limit, offset)
	items := []models.Tutorial{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("tutorial repository: list %w", err)
	}
	return items, total, nil
}

func (r *TutorialRepository) Update(ctx context.Context, t *models.Tutorial) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE tutorials SET title = $2, slug = $3, description = $4, category = $5,
			difficulty = $6, estimated_minutes = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, t.ID, t.Title, t.Slug, t.Description, t.Category, t.Difficulty, t.EstimatedMinutes).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrTutorialNotFound
		}
		if common.IsUniqueViolation(err) {
			return errTutorialSlugTaken
		}
		return fmt.Errorf("tutorial repository: update %w", err)
	}
	return nil
}

func (r *TutorialRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*models.Tutorial, error) {
	var t models.Tutorial
	err := r.db.GetContext(ctx, &t, `
		UPDATE tutorials SET is_published = $2, updated_at = NOW() WHERE id = $1 RETURNING *
	`, id, published)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrTutorialNotFound
		}
		return nil, fmt.Errorf("tutorial repository: set published %w", err)
	}
	return &t, nil
}

func (r *TutorialRepository) Delete(ctx context.Context, id, authorID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "tutorials", "author_id", id, authorID, apperror.ErrTutorialNotFound)
}

func (r *TutorialRepository) ListSteps(ctx context.Context, tutorialID uuid.UUID) ([]models.TutorialStep, error) {
	steps := []models.TutorialStep{}
	err := r.db.SelectContext(ctx, &steps,
		`SELECT * FROM tutorial_steps WHERE tutorial_id = $1 ORDER BY position`, tutorialID)
	if err != nil {
		return nil, fmt.Errorf("tutorial repository: list steps %w", err)
	}
	return steps, nil
}

// AddStep добавляет шаг в конец урока и увеличивает step_count.
func (r *TutorialRepository) AddStep(ctx context.Context, s *models.TutorialStep) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO tutorial_steps (tutorial_id, position, title, body, video_url)
			VALUES ($1, (SELECT COALESCE(MAX(position) + 1, 0) FROM tutorial_steps WHERE tutorial_id = $1), $2, $3, $4)
			RETURNING id, position, created_at
		`, s.TutorialID, s.Title, s.Body, s.VideoURL).Scan(&s.ID, &s.Position, &s.CreatedAt)
		if err != nil {
			return fmt.Errorf("tutorial repository: add step %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE tutorials SET step_count = step_count + 1, updated_at = NOW() WHERE id = $1`, s.TutorialID)
		if err != nil {
			return fmt.Errorf("tutorial repository: step count %w", err)
		}
		return nil
	})
}

func (r *TutorialRepository) UpdateStep(ctx context.Context, s *models.TutorialStep) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tutorial_steps SET title = $3, body = $4, video_url = $5
		WHERE id = $1 AND tutorial_id = $2
	`, s.ID, s.TutorialID, s.Title, s.Body, s.VideoURL)
	if err != nil {
		return fmt.Errorf("tutorial repository: update step %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrStepNotFound)
}

// DeleteStep удаляет шаг, уменьшает step_count и убирает шаг из прогресса.
// Процент прогресса пересчитывается по новому числу шагов; тем, кто прошёл
// все оставшиеся шаги, проставляется completed_at и растёт completion_count.
func (r *TutorialRepository) DeleteStep(ctx context.Context, tutorialID, stepID uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM tutorial_steps WHERE id = $1 AND tutorial_id = $2`, stepID, tutorialID)
		if err != nil {
			return fmt.Errorf("tutorial repository: delete step %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrStepNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tutorials SET step_count = GREATEST(step_count - 1, 0), updated_at = NOW() WHERE id = $1`,
			tutorialID); err != nil {
			return fmt.Errorf("tutorial repository: step count %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE tutorial_progress p SET
				completed_steps = array_remove(p.completed_steps, $2::text),
				percent = CASE WHEN t.step_count > 0
					THEN LEAST(ROUND(cardinality(array_remove(p.completed_steps, $2::text)) * 100.0 / t.step_count, 2), 100)
					ELSE 0 END
			FROM tutorials t
			WHERE p.tutorial_id = $1 AND t.id = p.tutorial_id
		`, tutorialID, stepID.String()); err != nil {
			return fmt.Errorf("tutorial repository: prune progress %w", err)
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE tutorial_progress SET completed_at = NOW()
			WHERE tutorial_id = $1 AND completed_at IS NULL AND percent >= 100
		`, tutorialID)
		if err != nil {
			return fmt.Errorf("tutorial repository: complete progress %w", err)
		}
		completed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("tutorial repository: complete progress %w", err)
		}
		if completed > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE tutorials SET completion_count = completion_count + $2 WHERE id = $1`,
				tutorialID, completed); err != nil {
				return fmt.Errorf("tutorial repository: completion count %w", err)
			}
		}
		return nil
	})
}

func (r *TutorialRepository) GetProgress(ctx context.Context, userID, tutorialID uuid.UUID) (*models.TutorialProgress, error) {
	var p models.TutorialProgress
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM tutorial_progress WHERE user_id = $1 AND tutorial_id = $2`, userID, tutorialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProgressNotFound
		}
		return nil, fmt.Errorf("tutorial repository: get progress %w", err)
	}
	return &p, nil
}

// StartProgress создаёт строку прогресса или возвращает существующую.
func (r *TutorialRepository) StartProgress(ctx context.Context, userID, tutorialID uuid.UUID) (*models.TutorialProgress, error) {
	var p models.TutorialProgress
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO tutorial_progress (user_id, tutorial_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, tutorial_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING *
	`, userID, tutorialID)
	if err != nil {
		return nil, fmt.Errorf("tutorial repository: start progress %w", err)
	}
	return &p, nil
}

// SaveProgress записывает прогресс; при первом завершении увеличивает
// completion_count урока в той же транзакции.
func (r *TutorialRepository) SaveProgress(ctx context.Context, p *models.TutorialProgress, firstCompletion bool) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tutorial_progress SET completed_steps = $3, percent = $4, completed_at = $5
			WHERE user_id = $1 AND tutorial_id = $2
		`, p.UserID, p.TutorialID, p.CompletedSteps, p.Percent, p.CompletedAt)
		if err != nil {
			return fmt.Errorf("tutorial repository: save progress %w", err)
		}
		if err := common.ExpectAffected(res, apperror.ErrProgressNotFound); err != nil {
			return err
		}
		if firstCompletion {
			if _, err := tx.ExecContext(ctx,
				`UPDATE tutorials SET completion_count = completion_count + 1 WHERE id = $1`, p.TutorialID); err != nil {
				return fmt.Errorf("tutorial repository: completion count %w", err)
			}
		}
		return nil
	})
}

func (r *TutorialRepository) ListProgress(ctx context.Context, userID uuid.UUID) ([]models.TutorialProgress, error) {
	items := []models.TutorialProgress{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM tutorial_progress WHERE user_id = $1 ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("tutorial repository: list progress %w", err)
	}
	return items, nil
}
