package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

var purchaseColumns = []string{
	"id", "user_id", "item_type", "item_id", "item_name", "amount", "currency", "status",
	"payment_intent_id", "refund_reason", "refunded_at", "completed_at", "created_at",
}

func TestPurchaseRepository_RefundWrongStatusIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPurchaseRepository(db)
	id, userID := uuid.New(), uuid.New()

	mock.ExpectQuery(`UPDATE purchases SET status = 'refunded'`).
		WithArgs(id, "дубль").
		WillReturnRows(sqlmock.NewRows(purchaseColumns))
	mock.ExpectQuery(`SELECT \* FROM purchases WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(purchaseColumns).AddRow(
			id, userID, "course", nil, "Курс", 10.0, "USD", "pending", nil, nil, nil, nil, timeNow(),
		))

	_, err := repo.Refund(context.Background(), id, "дубль")
	assert.True(t, apperror.IsConflict(err))
}

func TestPurchaseRepository_CompleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPurchaseRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE purchases SET status = 'completed'`).
		WillReturnRows(sqlmock.NewRows(purchaseColumns))
	mock.ExpectQuery(`SELECT \* FROM purchases WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(purchaseColumns))

	_, err := repo.Complete(context.Background(), id, nil)
	assert.ErrorIs(t, err, apperror.ErrPurchaseNotFound)
}
