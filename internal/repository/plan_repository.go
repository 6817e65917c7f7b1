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

type PlanRepository struct {
	db *sqlx.DB
}

func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// List возвращает тарифы по sort_order вместе с возможностями.
func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	query := `SELECT * FROM plans`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY sort_order, price_monthly`

	plans := []models.Plan{}
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("plan repository: list %w", err)
	}
	if err := r.attachFeatures(ctx, plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetByID возвращает тариф с возможностями.
func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := common.GetByID[models.Plan](ctx, r.db, "plans", id, apperror.ErrPlanNotFound)
	if err != nil {
		return nil, err
	}
	return r.withFeatures(ctx, plan)
}

// GetBySlug возвращает тариф по slug.
func (r *PlanRepository) GetBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.GetContext(ctx, &plan, `SELECT * FROM plans WHERE slug = $1`, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrPlanNotFound
		}
		return nil, fmt.Errorf("plan repository: get by slug %w", err)
	}
	return r.withFeatures(ctx, &plan)
}

// Create сохраняет тариф и его возможности в одной транзакции.
func (r *PlanRepository) Create(ctx context.Context, p *models.Plan) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO plans (name, slug, description, price_monthly, price_yearly, currency,
				stripe_price_monthly_id, stripe_price_yearly_id, limits, trial_days, is_active, is_popular, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, $12)
			RETURNING id, is_active, created_at, updated_at
		`, p.Name, p.Slug, p.Description, p.PriceMonthly, p.PriceYearly, p.Currency,
			p.StripePriceMonthly, p.StripePriceYearly, p.Limits, p.TrialDays, p.IsPopular, p.SortOrder,
		).Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return apperror.Conflict("тариф с таким slug уже существует")
			}
			return fmt.Errorf("plan repository: create %w", err)
		}
		return insertPlanFeatures(ctx, tx, p.ID, p.Features)
	})
}

// Update меняет параметры тарифа.
func (r *PlanRepository) Update(ctx context.Context, p *models.Plan) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE plans SET name = $2, slug = $3, description = $4, price_monthly = $5, price_yearly = $6,
			currency = $7, stripe_price_monthly_id = $8, stripe_price_yearly_id = $9, limits = $10,
			trial_days = $11, is_popular = $12, sort_order = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING is_active, updated_at
	`, p.ID, p.Name, p.Slug, p.Description, p.PriceMonthly, p.PriceYearly, p.Currency,
		p.StripePriceMonthly, p.StripePriceYearly, p.Limits, p.TrialDays, p.IsPopular, p.SortOrder,
	).Scan(&p.IsActive, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrPlanNotFound
		}
		if common.IsUniqueViolation(err) {
			return apperror.Conflict("тариф с таким slug уже существует")
		}
		return fmt.Errorf("plan repository: update %w", err)
	}
	return nil
}

// Deactivate скрывает тариф из каталога.
func (r *PlanRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE plans SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("plan repository: deactivate %w", err)
	}
	return common.ExpectAffected(res, apperror.ErrPlanNotFound)
}

// SetFeatures заменяет список возможностей тарифа.
func (r *PlanRepository) SetFeatures(ctx context.Context, planID uuid.UUID, features []models.PlanFeature) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM plan_features WHERE plan_id = $1`, planID); err != nil {
			return fmt.Errorf("plan repository: clear features %w", err)
		}
		return insertPlanFeatures(ctx, tx, planID, features)
	})
}

func insertPlanFeatures(ctx context.Context, tx *sqlx.Tx, planID uuid.UUID, features []models.PlanFeature) error {
	batch := common.NewBatchInserter(tx, `INSERT INTO plan_features (plan_id, name, included, position)`, 4, 100)
	for i, f := range features {
		if err := batch.Add(ctx, planID, f.Name, f.Included, i); err != nil {
			return fmt.Errorf("plan repository: features %w", err)
		}
	}
	if err := batch.Flush(ctx); err != nil {
		return fmt.Errorf("plan repository: features %w", err)
	}
	return nil
}

func (r *PlanRepository) withFeatures(ctx context.Context, p *models.Plan) (*models.Plan, error) {
	plans := []models.Plan{*p}
	if err := r.attachFeatures(ctx, plans); err != nil {
		return nil, err
	}
	return &plans[0], nil
}

// attachFeatures одним запросом подгружает возможности для всех тарифов.
func (r *PlanRepository) attachFeatures(ctx context.Context, plans []models.Plan) error {
	if len(plans) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(plans))
	index := make(map[uuid.UUID]int, len(plans))
	for i, p := range plans {
		ids[i] = p.ID
		index[p.ID] = i
		plans[i].Features = []models.PlanFeature{}
	}

	var features []models.PlanFeature
	err := r.db.SelectContext(ctx, &features,
		`SELECT * FROM plan_features WHERE plan_id = ANY($1) ORDER BY position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("plan repository: features %w", err)
	}
	for _, f := range features {
		i := index[f.PlanID]
		plans[i].Features = append(plans[i].Features, f)
	}
	return nil
}
