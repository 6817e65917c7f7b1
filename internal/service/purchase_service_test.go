package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

type mockPurchaseRepo struct {
	mock.Mock
}

func (m *mockPurchaseRepo) Create(ctx context.Context, p *models.Purchase) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPurchaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *mockPurchaseRepo) List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Purchase, int, error) {
	args := m.Called(ctx, userID, status, limit, offset)
	return args.Get(0).([]models.Purchase), args.Int(1), args.Error(2)
}

func (m *mockPurchaseRepo) Complete(ctx context.Context, id uuid.UUID, paymentIntentID *string) (*models.Purchase, error) {
	args := m.Called(ctx, id, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *mockPurchaseRepo) Fail(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *mockPurchaseRepo) Refund(ctx context.Context, id uuid.UUID, reason string) (*models.Purchase, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *mockPurchaseRepo) HasPurchased(ctx context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, itemType, itemID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPurchaseRepo) Stats(ctx context.Context, userID uuid.UUID) (*models.PurchaseStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseStats), args.Error(1)
}

func TestPurchaseService_CreatePurchase_Pending(t *testing.T) {
	repo := new(mockPurchaseRepo)
	em := &recordingEmitter{}
	svc := NewPurchaseService(repo, em)
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.Purchase")).Return(nil)

	p, err := svc.CreatePurchase(ctx, uuid.New(), dto.PurchaseRequest{ItemType: "course", ItemName: "Go курс", Amount: 49.999})

	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, p.Status)
	assert.Equal(t, 50.0, p.Amount)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, []string{"purchases:INSERT"}, em.tables())
}

func TestPurchaseService_CreatePurchase_UnknownType(t *testing.T) {
	svc := NewPurchaseService(new(mockPurchaseRepo), nil)

	_, err := svc.CreatePurchase(context.Background(), uuid.New(), dto.PurchaseRequest{ItemType: "car", ItemName: "x"})
	assert.True(t, apperror.IsValidation(err))
}

func TestPurchaseService_RefundPurchase_RequiresReason(t *testing.T) {
	svc := NewPurchaseService(new(mockPurchaseRepo), nil)

	_, err := svc.RefundPurchase(context.Background(), uuid.New(), uuid.New(), "  ")
	assert.True(t, apperror.IsValidation(err))
}

func TestPurchaseService_RefundPurchase_Conflict(t *testing.T) {
	repo := new(mockPurchaseRepo)
	svc := NewPurchaseService(repo, nil)
	ctx := context.Background()
	userID, id := uuid.New(), uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Purchase{ID: id, UserID: userID, Status: models.PurchaseStatusPending}, nil)
	repo.On("Refund", ctx, id, "не понравилось").Return(nil, apperror.Conflict("недопустимый переход из статуса pending"))

	_, err := svc.RefundPurchase(ctx, userID, id, "не понравилось")
	assert.True(t, apperror.IsConflict(err))
}

func TestPurchaseService_GetPurchase_OtherOwner(t *testing.T) {
	repo := new(mockPurchaseRepo)
	svc := NewPurchaseService(repo, nil)
	ctx := context.Background()
	id := uuid.New()

	repo.On("GetByID", ctx, id).Return(&models.Purchase{ID: id, UserID: uuid.New()}, nil)

	_, err := svc.GetPurchase(ctx, uuid.New(), id)
	assert.ErrorIs(t, err, apperror.ErrPurchaseNotFound)
}
