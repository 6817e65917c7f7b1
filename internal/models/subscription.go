package models

import (
	"time"

	"github.com/google/uuid"
)

// Периоды оплаты.
const (
	BillingMonthly = "monthly"
	BillingYearly  = "yearly"
)

// Subscription подписка пользователя на тариф.
type Subscription struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	UserID               uuid.UUID  `db:"user_id" json:"user_id"`
	PlanID               uuid.UUID  `db:"plan_id" json:"plan_id"`
	Status               string     `db:"status" json:"status"`
	BillingCycle         string     `db:"billing_cycle" json:"billing_cycle"`
	CurrentPeriodStart   time.Time  `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd     time.Time  `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd    bool       `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CanceledAt           *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	TrialEnd             *time.Time `db:"trial_end" json:"trial_end,omitempty"`
	StripeCustomerID     *string    `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// IsLive сообщает, считается ли подписка действующей.
func (s *Subscription) IsLive() bool {
	switch s.Status {
	case SubscriptionStatusTrialing, SubscriptionStatusActive, SubscriptionStatusPastDue:
		return true
	}
	return false
}
