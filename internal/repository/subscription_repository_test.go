package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

func TestSubscriptionRepository_CreateSecondLiveIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)

	mock.ExpectQuery(`INSERT INTO subscriptions`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Subscription{UserID: uuid.New(), PlanID: uuid.New()})
	assert.True(t, apperror.IsConflict(err))
}

func TestSubscriptionRepository_GetLiveMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM subscriptions WHERE user_id = \$1 AND status IN`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetLive(context.Background(), userID)
	assert.ErrorIs(t, err, apperror.ErrSubscriptionNotFound)
}

func TestSubscriptionRepository_ReplaceLive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)
	stripeID := "sub_1"
	sub := &models.Subscription{
		UserID: uuid.New(), PlanID: uuid.New(), Status: models.SubscriptionStatusActive,
		BillingCycle: models.BillingMonthly, CurrentPeriodStart: timeNow(), CurrentPeriodEnd: timeNow().AddDate(0, 1, 0),
		StripeSubscriptionID: &stripeID,
	}
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE subscriptions SET status = 'canceled'`).
		WithArgs(sub.UserID, sub.StripeSubscriptionID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO subscriptions .* ON CONFLICT \(stripe_subscription_id\) DO UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, timeNow(), timeNow()))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceLive(context.Background(), sub))
	assert.Equal(t, id, sub.ID)
}
