package dto

import "github.com/google/uuid"

// PurchaseRequest создание покупки.
type PurchaseRequest struct {
	ItemType        string     `json:"item_type" binding:"required"`
	ItemID          *uuid.UUID `json:"item_id"`
	ItemName        string     `json:"item_name" binding:"required"`
	Amount          float64    `json:"amount" binding:"gte=0"`
	Currency        string     `json:"currency"`
	PaymentIntentID *string    `json:"payment_intent_id"`
}

// CompletePurchaseRequest подтверждение оплаты.
type CompletePurchaseRequest struct {
	PaymentIntentID *string `json:"payment_intent_id"`
}

// RefundRequest возврат покупки.
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}
