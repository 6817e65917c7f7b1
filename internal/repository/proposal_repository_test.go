package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

func TestProposalRepository_AddItemRecalculatesTotals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProposalRepository(db)
	proposalID := uuid.New()
	itemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO proposal_items`).
		WithArgs(proposalID, "Дизайн", 2.0, 150.0, 300.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "position"}).AddRow(itemID, 1))
	mock.ExpectQuery(`SELECT\s+COALESCE`).
		WithArgs(proposalID).
		WillReturnRows(sqlmock.NewRows([]string{"subtotal", "discount_percent", "tax_rate"}).AddRow(300.0, 10.0, 20.0))
	mock.ExpectExec(`UPDATE proposals SET subtotal`).
		WithArgs(proposalID, 300.0, 54.0, 324.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	item := &models.ProposalItem{ProposalID: proposalID, Description: "Дизайн", Quantity: 2, UnitPrice: 150}
	totals, err := repo.AddItem(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, itemID, item.ID)
	assert.Equal(t, 1, item.Position)
	assert.Equal(t, 300.0, item.Amount)
	assert.Equal(t, 30.0, totals.Discount)
	assert.Equal(t, 54.0, totals.TaxAmount)
	assert.Equal(t, 324.0, totals.Total)
}

func TestProposalRepository_RemoveItemNotFoundRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProposalRepository(db)
	proposalID := uuid.New()
	itemID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM proposal_items`).
		WithArgs(itemID, proposalID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.RemoveItem(context.Background(), proposalID, itemID)
	assert.ErrorIs(t, err, apperror.ErrProposalItemNotFound)
}

func TestProposalRepository_RecalculateMissingProposal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProposalRepository(db)
	proposalID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+COALESCE`).
		WithArgs(proposalID).
		WillReturnRows(sqlmock.NewRows([]string{"subtotal", "discount_percent", "tax_rate"}))
	mock.ExpectRollback()

	_, err := repo.Recalculate(context.Background(), proposalID)
	assert.ErrorIs(t, err, apperror.ErrProposalNotFound)
}

func TestProposalRepository_MarkSentRequiresDraft(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProposalRepository(db)
	proposalID := uuid.New()

	mock.ExpectQuery(`UPDATE proposals SET status = 'sent'`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.MarkSent(context.Background(), proposalID, "token", timeNow())
	assert.True(t, apperror.IsConflict(err))
}
