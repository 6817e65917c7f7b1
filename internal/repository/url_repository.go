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

var errShortCodeTaken = apperror.Conflict("такой короткий код уже занят")

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) Create(ctx context.Context, u *models.ShortURL) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO urls (user_id, original_url, short_code, title, expires_at, max_clicks)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, created_at, updated_at
	`, u.UserID, u.OriginalURL, u.ShortCode, u.Title, u.ExpiresAt, u.MaxClicks).
		Scan(&u.ID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return errShortCodeTaken
		}
		return fmt.Errorf("url repository: create %w", err)
	}
	return nil
}

func (r *URLRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ShortURL, error) {
	return common.GetByID[models.ShortURL](ctx, r.db, "urls", id, apperror.ErrURLNotFound)
}

func (r *URLRepository) GetByCode(ctx context.Context, code string) (*models.ShortURL, error) {
	var u models.ShortURL
	if err := r.db.GetContext(ctx, &u, `SELECT * FROM urls WHERE short_code = $1`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrURLNotFound
		}
		return nil, fmt.Errorf("url repository: get by code %w", err)
	}
	return &u, nil
}

func (r *URLRepository) List(ctx context.Context, userID uuid.UUID, search string, limit, offset int) ([]models.ShortURL, int, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	if search != "" {
		f.Add("(original_url ILIKE ? OR short_code ILIKE ? OR title ILIKE ?)", "%"+search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM urls`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("url repository: count %w", err)
	}

	query, args := f.Page(`SELECT * FROM urls`+f.Where()+` ORDER BY created_at DESC`, limit, offset)
	items := []models.ShortURL{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("url repository: list %w", err)
	}
	return items, total, nil
}

func (r *URLRepository) Update(ctx context.Context, u *models.ShortURL) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE urls SET original_url = $2, title = $3, expires_at = $4, max_clicks = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, u.ID, u.OriginalURL, u.Title, u.ExpiresAt, u.MaxClicks).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrURLNotFound
		}
		return fmt.Errorf("url repository: update %w", err)
	}
	return nil
}

func (r *URLRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.ShortURL, error) {
	var u models.ShortURL
	err := r.db.GetContext(ctx, &u,
		`UPDATE urls SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING *`, id, active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrURLNotFound
		}
		return nil, fmt.Errorf("url repository: set active %w", err)
	}
	return &u, nil
}

func (r *URLRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return common.DeleteOwned(ctx, r.db, "urls", "user_id", id, userID, apperror.ErrURLNotFound)
}

// RecordClick увеличивает счётчик и пишет переход в одной транзакции.
// Счётчик растёт только у активной, не истёкшей ссылки с запасом по
// max_clicks, иначе возвращается ErrURLGone.
func (r *URLRepository) RecordClick(ctx context.Context, click *models.URLClick) (int, error) {
	var count int
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			UPDATE urls SET click_count = click_count + 1, last_clicked_at = NOW()
			WHERE id = $1 AND is_active
				AND (expires_at IS NULL OR expires_at > NOW())
				AND (max_clicks IS NULL OR click_count < max_clicks)
			RETURNING click_count
		`, click.URLID).Scan(&count)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrURLGone
			}
			return fmt.Errorf("url repository: count click %w", err)
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO url_clicks (url_id, referrer, user_agent, ip_hash, device, country)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, clicked_at
		`, click.URLID, click.Referrer, click.UserAgent, click.IPHash, click.Device, click.Country).
			Scan(&click.ID, &click.ClickedAt)
		if err != nil {
			return fmt.Errorf("url repository: insert click %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *URLRepository) AddRedirect(ctx context.Context, rd *models.URLRedirect) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO url_redirects (url_id, condition_type, condition_value, target_url, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, rd.URLID, rd.ConditionType, rd.ConditionValue, rd.TargetURL, rd.Priority).Scan(&rd.ID, &rd.CreatedAt)
	if err != nil {
		return fmt.Errorf("url repository: add redirect %w", err)
	}
	return nil
}

// ListRedirects возвращает правила по убыванию приоритета.
func (r *URLRepository) ListRedirects(ctx context.Context, urlID uuid.UUID) ([]models.URLRedirect, error) {
	items := []models.URLRedirect{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM url_redirects WHERE url_id = $1 ORDER BY priority DESC, created_at`, urlID)
	if err != nil {
		return nil, fmt.Errorf("url repository: list redirects %w", err)
	}
	return items, nil
}

func (r *URLRepository) DeleteRedirect(ctx context.Context, urlID, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM url_redirects WHERE id = $1 AND url_id = $2`, id, urlID)
	if err != nil {
		return fmt.Errorf("url repository: delete redirect %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrRedirectNotFound)
}

// ClickStats собирает статистику переходов с момента since.
func (r *URLRepository) ClickStats(ctx context.Context, urlID uuid.UUID, since time.Time) (*models.ClickStats, error) {
	stats := &models.ClickStats{}
	err := r.db.QueryRowxContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT ip_hash)
		FROM url_clicks WHERE url_id = $1 AND clicked_at >= $2
	`, urlID, since).Scan(&stats.TotalClicks, &stats.UniqueIPs)
	if err != nil {
		return nil, fmt.Errorf("url repository: click totals %w", err)
	}

	stats.ByDay = []models.DailyClicks{}
	if err := r.db.SelectContext(ctx, &stats.ByDay, `
		SELECT date_trunc('day', clicked_at) AS day, COUNT(*) AS count
		FROM url_clicks WHERE url_id = $1 AND clicked_at >= $2
		GROUP BY day ORDER BY day
	`, urlID, since); err != nil {
		return nil, fmt.Errorf("url repository: clicks by day %w", err)
	}

	stats.ByDevice = []models.CountBucket{}
	if err := r.db.SelectContext(ctx, &stats.ByDevice, `
		SELECT device AS value, COUNT(*) AS count
		FROM url_clicks WHERE url_id = $1 AND clicked_at >= $2
		GROUP BY device ORDER BY count DESC
	`, urlID, since); err != nil {
		return nil, fmt.Errorf("url repository: clicks by device %w", err)
	}

	stats.TopReferrers = []models.CountBucket{}
	if err := r.db.SelectContext(ctx, &stats.TopReferrers, `
		SELECT COALESCE(NULLIF(referrer, ''), 'direct') AS value, COUNT(*) AS count
		FROM url_clicks WHERE url_id = $1 AND clicked_at >= $2
		GROUP BY value ORDER BY count DESC
		LIMIT 10
	`, urlID, since); err != nil {
		return nil, fmt.Errorf("url repository: top referrers %w", err)
	}
	return stats, nil
}
