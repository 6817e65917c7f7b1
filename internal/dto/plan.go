package dto

import "encoding/json"

// PlanFeatureRequest строка возможностей тарифа.
type PlanFeatureRequest struct {
	Name     string `json:"name" binding:"required"`
	Included bool   `json:"included"`
}

// PlanRequest создание и изменение тарифа.
type PlanRequest struct {
	Name               string               `json:"name" binding:"required"`
	Slug               string               `json:"slug"`
	Description        *string              `json:"description"`
	PriceMonthly       float64              `json:"price_monthly" binding:"gte=0"`
	PriceYearly        float64              `json:"price_yearly" binding:"gte=0"`
	Currency           string               `json:"currency"`
	StripePriceMonthly *string              `json:"stripe_price_monthly_id"`
	StripePriceYearly  *string              `json:"stripe_price_yearly_id"`
	Limits             json.RawMessage      `json:"limits"`
	TrialDays          int                  `json:"trial_days" binding:"gte=0,lte=90"`
	IsPopular          bool                 `json:"is_popular"`
	SortOrder          int                  `json:"sort_order"`
	Features           []PlanFeatureRequest `json:"features"`
}

// PlanFeaturesRequest полная замена списка возможностей.
type PlanFeaturesRequest struct {
	Features []PlanFeatureRequest `json:"features"`
}
