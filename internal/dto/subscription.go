package dto

import "github.com/google/uuid"

// SubscribeRequest оформление или смена тарифа.
type SubscribeRequest struct {
	PlanID       uuid.UUID `json:"plan_id" binding:"required"`
	BillingCycle string    `json:"billing_cycle" binding:"omitempty,oneof=monthly yearly"`
}

// CancelSubscriptionRequest отмена подписки.
type CancelSubscriptionRequest struct {
	Immediate bool `json:"immediate"`
}

// CheckoutRequest создание сессии оплаты.
type CheckoutRequest struct {
	PlanID       uuid.UUID `json:"plan_id" binding:"required"`
	BillingCycle string    `json:"billing_cycle" binding:"omitempty,oneof=monthly yearly"`
	Email        string    `json:"email" binding:"omitempty,email"`
}

// PortalRequest открытие клиентского портала.
type PortalRequest struct {
	ReturnURL string `json:"return_url" binding:"omitempty,url"`
}
