package dto

import "time"

// ProposalItemRequest позиция сметы.
type ProposalItemRequest struct {
	Description string  `json:"description" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"gt=0"`
	UnitPrice   float64 `json:"unit_price" binding:"gte=0"`
}

// ProposalRequest создание и изменение предложения.
type ProposalRequest struct {
	ClientName      string                `json:"client_name" binding:"required"`
	ClientEmail     *string               `json:"client_email" binding:"omitempty,email"`
	Title           string                `json:"title" binding:"required"`
	Description     *string               `json:"description"`
	Currency        string                `json:"currency"`
	DiscountPercent float64               `json:"discount_percent" binding:"gte=0,lte=100"`
	TaxRate         float64               `json:"tax_rate" binding:"gte=0,lte=100"`
	ValidUntil      *time.Time            `json:"valid_until"`
	Notes           *string               `json:"notes"`
	Items           []ProposalItemRequest `json:"items" binding:"dive"`
}

// SignProposalRequest подпись клиента.
type SignProposalRequest struct {
	SignerName    string `json:"signer_name" binding:"required"`
	SignerEmail   string `json:"signer_email" binding:"required,email"`
	SignatureData string `json:"signature_data" binding:"required"`
}

// DeclineProposalRequest отказ клиента.
type DeclineProposalRequest struct {
	Reason string `json:"reason"`
}
