package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase разовая покупка пользователя.
type Purchase struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	ItemType        string     `db:"item_type" json:"item_type"`
	ItemID          *uuid.UUID `db:"item_id" json:"item_id,omitempty"`
	ItemName        string     `db:"item_name" json:"item_name"`
	Amount          float64    `db:"amount" json:"amount"`
	Currency        string     `db:"currency" json:"currency"`
	Status          string     `db:"status" json:"status"`
	PaymentIntentID *string    `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	RefundReason    *string    `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundedAt      *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// PurchaseStats сводка покупок.
type PurchaseStats struct {
	TotalSpent    float64        `db:"total_spent" json:"total_spent"`
	TotalRefunded float64        `db:"total_refunded" json:"total_refunded"`
	ByStatus      map[string]int `db:"-" json:"by_status"`
}
