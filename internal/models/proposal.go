package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Proposal коммерческое предложение фрилансера клиенту.
type Proposal struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	ClientName      string     `db:"client_name" json:"client_name"`
	ClientEmail     *string    `db:"client_email" json:"client_email,omitempty"`
	Title           string     `db:"title" json:"title"`
	Description     *string    `db:"description" json:"description,omitempty"`
	Status          string     `db:"status" json:"status"`
	Currency        string     `db:"currency" json:"currency"`
	Subtotal        float64    `db:"subtotal" json:"subtotal"`
	DiscountPercent float64    `db:"discount_percent" json:"discount_percent"`
	TaxRate         float64    `db:"tax_rate" json:"tax_rate"`
	TaxAmount       float64    `db:"tax_amount" json:"tax_amount"`
	Total           float64    `db:"total" json:"total"`
	ValidUntil      *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	ShareToken      *string    `db:"share_token" json:"share_token,omitempty"`
	SentAt          *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	ViewedAt        *time.Time `db:"viewed_at" json:"viewed_at,omitempty"`
	RespondedAt     *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	ViewCount       int        `db:"view_count" json:"view_count"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Items     []ProposalItem     `db:"-" json:"items,omitempty"`
	Signature *ProposalSignature `db:"-" json:"signature,omitempty"`
}

// IsExpired сообщает, истёк ли срок действия предложения.
func (p *Proposal) IsExpired(now time.Time) bool {
	return p.ValidUntil != nil && now.After(*p.ValidUntil)
}

// ProposalItem строка сметы.
type ProposalItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ProposalID  uuid.UUID `db:"proposal_id" json:"proposal_id"`
	Description string    `db:"description" json:"description"`
	Quantity    float64   `db:"quantity" json:"quantity"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	Amount      float64   `db:"amount" json:"amount"`
	Position    int       `db:"position" json:"position"`
}

// ProposalSignature подпись клиента под предложением.
type ProposalSignature struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ProposalID    uuid.UUID `db:"proposal_id" json:"proposal_id"`
	SignerName    string    `db:"signer_name" json:"signer_name"`
	SignerEmail   string    `db:"signer_email" json:"signer_email"`
	SignatureData string    `db:"signature_data" json:"signature_data"`
	IPAddress     *string   `db:"ip_address" json:"ip_address,omitempty"`
	SignedAt      time.Time `db:"signed_at" json:"signed_at"`
}

// ProposalTotals пересчитанные суммы предложения.
type ProposalTotals struct {
	Subtotal  float64 `json:"subtotal"`
	Discount  float64 `json:"discount"`
	TaxAmount float64 `json:"tax_amount"`
	Total     float64 `json:"total"`
}

// StatusTotal количество и сумма строк в одном статусе.
type StatusTotal struct {
	Status string  `db:"status"`
	Count  int     `db:"count"`
	Amount float64 `db:"amount"`
}

// ProposalStats агрегаты по предложениям пользователя.
type ProposalStats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	AcceptedValue  float64        `json:"accepted_value"`
	PipelineValue  float64        `json:"pipeline_value"`
	AcceptanceRate float64        `json:"acceptance_rate"`
}

// CalculateProposalTotals считает суммы предложения: скидка применяется к
// подытогу, налог к сумме после скидки, всё округляется до копеек.
func CalculateProposalTotals(subtotal, discountPercent, taxRate float64) ProposalTotals {
	subtotal = roundCents(subtotal)
	discount := roundCents(subtotal * discountPercent / 100)
	taxable := subtotal - discount
	tax := roundCents(taxable * taxRate / 100)
	return ProposalTotals{
		Subtotal:  subtotal,
		Discount:  discount,
		TaxAmount: tax,
		Total:     roundCents(taxable + tax),
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
