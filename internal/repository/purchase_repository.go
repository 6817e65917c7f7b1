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

type PurchaseRepository struct {
	db *sqlx.DB
}

func NewPurchaseRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create сохраняет покупку.
func (r *PurchaseRepository) Create(ctx context.Context, p *models.Purchase) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO purchases (user_id, item_type, item_id, item_name, amount, currency, status, payment_intent_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, p.UserID, p.ItemType, p.ItemID, p.ItemName, p.Amount, p.Currency, p.Status, p.PaymentIntentID, p.CompletedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.Conflict("покупка с таким платежом уже существует")
		}
		return fmt.Errorf("purchase repository: create %w", err)
	}
	return nil
}

func (r *PurchaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return common.GetByID[models.Purchase](ctx, r.db, "purchases", id, apperror.ErrPurchaseNotFound)
}

// List возвращает покупки пользователя.
func (r *PurchaseRepository) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Purchase, int, error) {
	var f common.Filter
	f.Add("user_id = ?", userID)
	if status != "" {
		f.Add("status = ?", status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM purchases`+f.Where(), f.Args()...); err != nil {
		return nil, 0, fmt.Errorf("purchase repository: count %w", err)
	}

	query, args := f.Page(`SELECT * FROM purchases`+f.Where()+` ORDER BY created_at DESC`, limit, offset)
	items := []models.Purchase{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("purchase repository: list %w", err)
	}
	return items, total, nil
}

// Complete переводит pending покупку в completed.
func (r *PurchaseRepository) Complete(ctx context.Context, id uuid.UUID, paymentIntentID *string) (*models.Purchase, error) {
	return r.transition(ctx, `
		UPDATE purchases SET status = 'completed', completed_at = NOW(),
			payment_intent_id = COALESCE($2, payment_intent_id)
		WHERE id = $1 AND status = 'pending'
		RETURNING *
	`, id, paymentIntentID)
}

// Fail отмечает pending покупку неуспешной.
func (r *PurchaseRepository) Fail(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return r.transition(ctx, `
		UPDATE purchases SET status = 'failed' WHERE id = $1 AND status = 'pending' RETURNING *
	`, id)
}

// Refund возвращает завершённую покупку.
func (r *PurchaseRepository) Refund(ctx context.Context, id uuid.UUID, reason string) (*models.Purchase, error) {
	return r.transition(ctx, `
		UPDATE purchases SET status = 'refunded', refund_reason = $2, refunded_at = NOW()
		WHERE id = $1 AND status = 'completed'
		RETURNING *
	`, id, reason)
}

// transition выполняет условный UPDATE; если строка есть, но статус не подошёл, возвращает Conflict.
func (r *PurchaseRepository) transition(ctx context.Context, query string, id uuid.UUID, args ...interface{}) (*models.Purchase, error) {
	var p models.Purchase
	err := r.db.GetContext(ctx, &p, query, append([]interface{}{id}, args...)...)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("purchase repository: transition %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperror.Newf(apperror.ErrCodeConflict, "недопустимый переход из статуса %s", current.Status)
}

// HasPurchased проверяет наличие завершённой покупки позиции.
func (r *PurchaseRepository) HasPurchased(ctx context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM purchases
			WHERE user_id = $1 AND item_type = $2 AND item_id = $3 AND status = 'completed'
		)
	`, userID, itemType, itemID)
	if err != nil {
		return false, fmt.Errorf("purchase repository: has purchased %w", err)
	}
	return exists, nil
}

// Stats считает потраченное и количество покупок по статусам.
func (r *PurchaseRepository) Stats(ctx context.Context, userID uuid.UUID) (*models.PurchaseStats, error) {
	stats := &models.PurchaseStats{ByStatus: map[string]int{}}
	err := r.db.GetContext(ctx, stats, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0) AS total_spent,
			COALESCE(SUM(amount) FILTER (WHERE status = 'refunded'), 0) AS total_refunded
		FROM purchases WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("purchase repository: stats %w", err)
	}

	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM purchases WHERE user_id = $1 GROUP BY status`, userID); err != nil {
		return nil, fmt.Errorf("purchase repository: stats by status %w", err)
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
	}
	return stats, nil
}
