package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const tablePurchases = "purchases"

type PurchaseRepository interface {
	Create(ctx context.Context, p *models.Purchase) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	List(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Purchase, int, error)
	Complete(ctx context.Context, id uuid.UUID, paymentIntentID *string) (*models.Purchase, error)
	Fail(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	Refund(ctx context.Context, id uuid.UUID, reason string) (*models.Purchase, error)
	HasPurchased(ctx context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) (bool, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.PurchaseStats, error)
}

type PurchaseService struct {
	repo   PurchaseRepository
	events events.Emitter
}

func NewPurchaseService(repo PurchaseRepository, emitter events.Emitter) *PurchaseService {
	return &PurchaseService{repo: repo, events: emitterOrNoop(emitter)}
}

// CreatePurchase создаёт покупку в статусе pending.
func (s *PurchaseService) CreatePurchase(ctx context.Context, userID uuid.UUID, req dto.PurchaseRequest) (*models.Purchase, error) {
	p, err := newPurchase(userID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tablePurchases, p))
	return p, nil
}

// RecordCompleted сохраняет сразу оплаченную покупку (например, из webhook Stripe).
func (s *PurchaseService) RecordCompleted(ctx context.Context, userID uuid.UUID, req dto.PurchaseRequest) (*models.Purchase, error) {
	p, err := newPurchase(userID, req)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.Status = models.PurchaseStatusCompleted
	p.CompletedAt = &now

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tablePurchases, p))
	return p, nil
}

// GetPurchase возвращает покупку владельца.
func (s *PurchaseService) GetPurchase(ctx context.Context, userID, id uuid.UUID) (*models.Purchase, error) {
	return s.owned(ctx, userID, id)
}

// ListPurchases возвращает покупки пользователя.
func (s *PurchaseService) ListPurchases(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Purchase, int, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.List(ctx, userID, status, limit, offset)
}

// CompletePurchase подтверждает оплату.
func (s *PurchaseService) CompletePurchase(ctx context.Context, userID, id uuid.UUID, paymentIntentID *string) (*models.Purchase, error) {
	old, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Complete(ctx, id, optionalString(paymentIntentID))
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tablePurchases, p, old))
	return p, nil
}

// FailPurchase отмечает неуспешную оплату.
func (s *PurchaseService) FailPurchase(ctx context.Context, userID, id uuid.UUID) (*models.Purchase, error) {
	old, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Fail(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tablePurchases, p, old))
	return p, nil
}

// RefundPurchase оформляет возврат завершённой покупки.
func (s *PurchaseService) RefundPurchase(ctx context.Context, userID, id uuid.UUID, reason string) (*models.Purchase, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("укажите причину возврата")
	}
	old, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Refund(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tablePurchases, p, old))
	return p, nil
}

// HasPurchased сообщает, купил ли пользователь позицию.
func (s *PurchaseService) HasPurchased(ctx context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) (bool, error) {
	if _, ok := models.ValidPurchaseItemTypes[itemType]; !ok {
		return false, apperror.Validation("неизвестный тип позиции")
	}
	return s.repo.HasPurchased(ctx, userID, itemType, itemID)
}

// PurchaseStats сводка по покупкам пользователя.
func (s *PurchaseService) PurchaseStats(ctx context.Context, userID uuid.UUID) (*models.PurchaseStats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.TotalSpent = round2(stats.TotalSpent)
	stats.TotalRefunded = round2(stats.TotalRefunded)
	return stats, nil
}

func (s *PurchaseService) owned(ctx context.Context, userID, id uuid.UUID) (*models.Purchase, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, apperror.ErrPurchaseNotFound
	}
	return p, nil
}

func newPurchase(userID uuid.UUID, req dto.PurchaseRequest) (*models.Purchase, error) {
	if _, ok := models.ValidPurchaseItemTypes[req.ItemType]; !ok {
		return nil, apperror.Validation("неизвестный тип позиции")
	}
	if err := requireText(req.ItemName, "укажите название позиции"); err != nil {
		return nil, err
	}
	if req.Amount < 0 {
		return nil, apperror.Validation("сумма не может быть отрицательной")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &models.Purchase{
		UserID:          userID,
		ItemType:        req.ItemType,
		ItemID:          req.ItemID,
		ItemName:        strings.TrimSpace(req.ItemName),
		Amount:          round2(req.Amount),
		Currency:        currency,
		Status:          models.PurchaseStatusPending,
		PaymentIntentID: optionalString(req.PaymentIntentID),
	}, nil
}
