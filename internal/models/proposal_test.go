package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateProposalTotals(t *testing.T) {
	cases := []struct {
		name                    string
		subtotal, discount, tax float64
		wantDiscount, wantTax   float64
		wantTotal               float64
	}{
		{"без скидки и налога", 1500, 0, 0, 0, 0, 1500},
		{"скидка и налог", 1000, 10, 20, 100, 180, 1080},
		{"округление", 333.333, 15, 8, 50, 22.67, 306},
		{"пустое предложение", 0, 10, 20, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateProposalTotals(tc.subtotal, tc.discount, tc.tax)
			assert.InDelta(t, tc.wantDiscount, got.Discount, 0.001)
			assert.InDelta(t, tc.wantTax, got.TaxAmount, 0.001)
			assert.InDelta(t, tc.wantTotal, got.Total, 0.001)
		})
	}
}

func TestProposal_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&Proposal{}).IsExpired(now))
	assert.True(t, (&Proposal{ValidUntil: &past}).IsExpired(now))
	assert.False(t, (&Proposal{ValidUntil: &future}).IsExpired(now))
}
