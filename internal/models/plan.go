package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Plan тариф платформы.
type Plan struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	Name                 string          `db:"name" json:"name"`
	Slug                 string          `db:"slug" json:"slug"`
	Description          *string         `db:"description" json:"description,omitempty"`
	PriceMonthly         float64         `db:"price_monthly" json:"price_monthly"`
	PriceYearly          float64         `db:"price_yearly" json:"price_yearly"`
	Currency             string          `db:"currency" json:"currency"`
	StripePriceMonthly   *string         `db:"stripe_price_monthly_id" json:"stripe_price_monthly_id,omitempty"`
	StripePriceYearly    *string         `db:"stripe_price_yearly_id" json:"stripe_price_yearly_id,omitempty"`
	Limits               json.RawMessage `db:"limits" json:"limits"`
	TrialDays            int             `db:"trial_days" json:"trial_days"`
	IsActive             bool            `db:"is_active" json:"is_active"`
	IsPopular            bool            `db:"is_popular" json:"is_popular"`
	SortOrder            int             `db:"sort_order" json:"sort_order"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
	Features             []PlanFeature   `db:"-" json:"features,omitempty"`
	YearlySavingsPercent float64         `db:"-" json:"yearly_savings_percent"`
}

// PlanFeature строка сравнения тарифов.
type PlanFeature struct {
	ID       uuid.UUID `db:"id" json:"id"`
	PlanID   uuid.UUID `db:"plan_id" json:"plan_id"`
	Name     string    `db:"name" json:"name"`
	Included bool      `db:"included" json:"included"`
	Position int       `db:"position" json:"position"`
}

// PlanComparison матрица возможностей по тарифам.
type PlanComparison struct {
	Plans    []Plan                     `json:"plans"`
	Features []string                   `json:"features"`
	Matrix   map[string]map[string]bool `json:"matrix"`
}
