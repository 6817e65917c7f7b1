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

// errLiveSubscription нарушение уникального индекса действующих подписок.
var errLiveSubscription = apperror.Conflict("у пользователя уже есть действующая подписка")

const liveStatuses = `('trialing', 'active', 'past_due')`

type SubscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const insertSubscription = `
	INSERT INTO subscriptions (user_id, plan_id, status, billing_cycle, current_period_start, current_period_end,
		cancel_at_period_end, canceled_at, trial_end, stripe_customer_id, stripe_subscription_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

func subscriptionArgs(s *models.Subscription) []interface{} {
	return []interface{}{
		s.UserID, s.PlanID, s.Status, s.BillingCycle, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd, s.CanceledAt, s.TrialEnd, s.StripeCustomerID, s.StripeSubscriptionID,
	}
}

// Create сохраняет подписку; вторая действующая подписка даёт Conflict.
func (r *SubscriptionRepository) Create(ctx context.Context, s *models.Subscription) error {
	err := r.db.QueryRowxContext(ctx, insertSubscription+` RETURNING id, created_at, updated_at`, subscriptionArgs(s)...).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return errLiveSubscription
		}
		if common.IsForeignKeyViolation(err) {
			return apperror.ErrPlanNotFound
		}
		return fmt.Errorf("subscription repository: create %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return common.GetByID[models.Subscription](ctx, r.db, "subscriptions", id, apperror.ErrSubscriptionNotFound)
}

// GetLive возвращает действующую подписку пользователя.
func (r *SubscriptionRepository) GetLive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return r.getOne(ctx, `SELECT * FROM subscriptions WHERE user_id = $1 AND status IN `+liveStatuses+` LIMIT 1`, userID)
}

// GetLatest возвращает последнюю подписку пользователя в любом статусе.
func (r *SubscriptionRepository) GetLatest(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return r.getOne(ctx, `SELECT * FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID)
}

// GetByStripeID ищет подписку по идентификатору Stripe.
func (r *SubscriptionRepository) GetByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	return r.getOne(ctx, `SELECT * FROM subscriptions WHERE stripe_subscription_id = $1`, stripeID)
}

func (r *SubscriptionRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.db.GetContext(ctx, &s, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subscription repository: get %w", err)
	}
	return &s, nil
}

// Update сохраняет изменяемые поля подписки.
func (r *SubscriptionRepository) Update(ctx context.Context, s *models.Subscription) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE subscriptions SET
			plan_id = $2, status = $3, billing_cycle = $4, current_period_start = $5, current_period_end = $6,
			cancel_at_period_end = $7, canceled_at = $8, trial_end = $9,
			stripe_customer_id = $10, stripe_subscription_id = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, s.ID, s.PlanID, s.Status, s.BillingCycle, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd, s.CanceledAt, s.TrialEnd, s.StripeCustomerID, s.StripeSubscriptionID,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrSubscriptionNotFound
		}
		if common.IsUniqueViolation(err) {
			return errLiveSubscription
		}
		return fmt.Errorf("subscription repository: update %w", err)
	}
	return nil
}

// List возвращает историю подписок пользователя.
func (r *SubscriptionRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Subscription, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("subscription repository: count %w", err)
	}

	items := []models.Subscription{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("subscription repository: list %w", err)
	}
	return items, total, nil
}

// ReplaceLive закрывает прочие действующие подписки пользователя и сохраняет
// подписку Stripe; повторная доставка события обновляет ту же строку.
func (r *SubscriptionRepository) ReplaceLive(ctx context.Context, s *models.Subscription) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE subscriptions SET status = 'canceled', canceled_at = NOW(), cancel_at_period_end = FALSE, updated_at = NOW()
			WHERE user_id = $1 AND status IN `+liveStatuses+`
				AND stripe_subscription_id IS DISTINCT FROM $2
		`, s.UserID, s.StripeSubscriptionID)
		if err != nil {
			return fmt.Errorf("subscription repository: close live %w", err)
		}

		err = tx.QueryRowxContext(ctx, insertSubscription+`
			ON CONFLICT (stripe_subscription_id) DO UPDATE SET
				plan_id = EXCLUDED.plan_id, status = EXCLUDED.status, billing_cycle = EXCLUDED.billing_cycle,
				current_period_start = EXCLUDED.current_period_start, current_period_end = EXCLUDED.current_period_end,
				cancel_at_period_end = EXCLUDED.cancel_at_period_end, trial_end = EXCLUDED.trial_end,
				stripe_customer_id = EXCLUDED.stripe_customer_id, updated_at = NOW()
			RETURNING id, created_at, updated_at
		`, subscriptionArgs(s)...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("subscription repository: upsert %w", err)
		}
		return nil
	})
}
