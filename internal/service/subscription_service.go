package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/billing"
	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/events"
	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
)

const (
	tableSubscriptions      = "subscriptions"
	defaultSubscriptionName = "Подписка"
)

var errBillingDisabled = apperror.New(apperror.ErrCodeBadRequest, "оплата не настроена")

type SubscriptionRepository interface {
	Create(ctx context.Context, s *models.Subscription) error
	GetLive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetLatest(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error)
	Update(ctx context.Context, s *models.Subscription) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Subscription, int, error)
	ReplaceLive(ctx context.Context, s *models.Subscription) error
}

// PlanLookup источник тарифов.
type PlanLookup interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

// PurchaseRecorder фиксирует оплаченные покупки.
type PurchaseRecorder interface {
	RecordCompleted(ctx context.Context, userID uuid.UUID, req dto.PurchaseRequest) (*models.Purchase, error)
}

// BillingProvider платёжный провайдер.
type BillingProvider interface {
	EnsureCustomer(ctx context.Context, customerID string, userID uuid.UUID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (*billing.Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*billing.Session, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*billing.SubscriptionState, error)
	ResumeSubscription(ctx context.Context, subscriptionID string) (*billing.SubscriptionState, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*billing.SubscriptionState, error)
	ConstructWebhookEvent(payload []byte, signature string) (*billing.Event, error)
}

// BillingURLs адреса возврата со страниц Stripe.
type BillingURLs struct {
	Success      string
	Cancel       string
	PortalReturn string
}

type SubscriptionService struct {
	repo      SubscriptionRepository
	plans     PlanLookup
	purchases PurchaseRecorder
	provider  BillingProvider
	urls      BillingURLs
	events    events.Emitter
	now       func() time.Time
}

// NewSubscriptionService создаёт сервис. provider может быть nil, если Stripe не настроен.
func NewSubscriptionService(repo SubscriptionRepository, plans PlanLookup, purchases PurchaseRecorder,
	provider BillingProvider, urls BillingURLs, emitter events.Emitter) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		plans:     plans,
		purchases: purchases,
		provider:  provider,
		urls:      urls,
		events:    emitterOrNoop(emitter),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetCurrent возвращает действующую подписку или nil.
func (s *SubscriptionService) GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.GetLive(ctx, userID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return sub, err
}

// Subscribe оформляет подписку без оплаты через Stripe. Пробный период
// берётся из тарифа.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, req dto.SubscribeRequest) (*models.Subscription, error) {
	plan, cycle, err := s.activePlan(ctx, req.PlanID, req.BillingCycle)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetLive(ctx, userID); err == nil {
		return nil, apperror.Conflict("у пользователя уже есть действующая подписка")
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	now := s.now()
	sub := &models.Subscription{
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             models.SubscriptionStatusActive,
		BillingCycle:       cycle,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd(now, cycle),
	}
	if plan.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, plan.TrialDays)
		sub.Status = models.SubscriptionStatusTrialing
		sub.TrialEnd = &trialEnd
		sub.CurrentPeriodEnd = trialEnd
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Inserted(tableSubscriptions, sub))
	return sub, nil
}

// ChangePlan меняет тариф или период действующей подписки.
func (s *SubscriptionService) ChangePlan(ctx context.Context, userID uuid.UUID, req dto.SubscribeRequest) (*models.Subscription, error) {
	sub, err := s.repo.GetLive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID != nil {
		return nil, apperror.Conflict("подписка оплачивается через Stripe, смените тариф в клиентском портале")
	}

	plan, cycle, err := s.activePlan(ctx, req.PlanID, req.BillingCycle)
	if err != nil {
		return nil, err
	}
	if plan.ID == sub.PlanID && cycle == sub.BillingCycle {
		return nil, apperror.Validation("тариф не изменился")
	}

	old := *sub
	sub.PlanID = plan.ID
	if cycle != sub.BillingCycle {
		sub.BillingCycle = cycle
		sub.CurrentPeriodEnd = periodEnd(sub.CurrentPeriodStart, cycle)
	}
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableSubscriptions, sub, &old))
	return sub, nil
}

// Cancel отменяет подписку сразу или в конце оплаченного периода.
func (s *SubscriptionService) Cancel(ctx context.Context, userID uuid.UUID, immediate bool) (*models.Subscription, error) {
	sub, err := s.repo.GetLive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !immediate && sub.CancelAtPeriodEnd {
		return sub, nil
	}

	if sub.StripeSubscriptionID != nil && s.provider != nil {
		if _, err := s.provider.CancelSubscription(ctx, *sub.StripeSubscriptionID, !immediate); err != nil {
			return nil, err
		}
	}

	old := *sub
	if immediate {
		now := s.now()
		sub.Status = models.SubscriptionStatusCanceled
		sub.CanceledAt = &now
		sub.CancelAtPeriodEnd = false
	} else {
		sub.CancelAtPeriodEnd = true
	}
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableSubscriptions, sub, &old))
	return sub, nil
}

// Resume снимает отмену в конце периода.
func (s *SubscriptionService) Resume(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.GetLive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.CancelAtPeriodEnd {
		return nil, apperror.Conflict("подписка не отменена")
	}

	if sub.StripeSubscriptionID != nil && s.provider != nil {
		if _, err := s.provider.ResumeSubscription(ctx, *sub.StripeSubscriptionID); err != nil {
			return nil, err
		}
	}

	old := *sub
	sub.CancelAtPeriodEnd = false
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	s.events.Emit(ctx, userID, events.Updated(tableSubscriptions, sub, &old))
	return sub, nil
}

// ListHistory возвращает все подписки пользователя.
func (s *SubscriptionService) ListHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Subscription, int, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.List(ctx, userID, limit, offset)
}

// CreateCheckoutSession создаёт сессию оплаты тарифа в Stripe. Пробный
// период даётся только при первой подписке.
func (s *SubscriptionService) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, req dto.CheckoutRequest) (*billing.Session, error) {
	if s.provider == nil {
		return nil, errBillingDisabled
	}
	plan, cycle, err := s.activePlan(ctx, req.PlanID, req.BillingCycle)
	if err != nil {
		return nil, err
	}
	priceID := plan.StripePriceMonthly
	if cycle == models.BillingYearly {
		priceID = plan.StripePriceYearly
	}
	if priceID == nil || *priceID == "" {
		return nil, apperror.Validation("для тарифа не настроена цена Stripe")
	}

	if live, err := s.repo.GetLive(ctx, userID); err == nil && live.StripeSubscriptionID != nil {
		return nil, apperror.Conflict("подписка уже оплачивается через Stripe")
	} else if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	latest, err := s.repo.GetLatest(ctx, userID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	customerID := ""
	trialDays := plan.TrialDays
	if latest != nil {
		trialDays = 0
		if latest.StripeCustomerID != nil {
			customerID = *latest.StripeCustomerID
		}
	}

	customerID, err = s.provider.EnsureCustomer(ctx, customerID, userID, req.Email)
	if err != nil {
		return nil, err
	}

	return s.provider.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID:   customerID,
		PriceID:      *priceID,
		UserID:       userID,
		PlanID:       plan.ID,
		BillingCycle: cycle,
		TrialDays:    trialDays,
		SuccessURL:   s.urls.Success,
		CancelURL:    s.urls.Cancel,
	})
}

// CreatePortalSession открывает клиентский портал Stripe.
func (s *SubscriptionService) CreatePortalSession(ctx context.Context, userID uuid.UUID, returnURL string) (*billing.Session, error) {
	if s.provider == nil {
		return nil, errBillingDisabled
	}
	latest, err := s.repo.GetLatest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest.StripeCustomerID == nil {
		return nil, apperror.ErrSubscriptionNotFound
	}
	if returnURL == "" {
		returnURL = s.urls.PortalReturn
	}
	return s.provider.CreatePortalSession(ctx, *latest.StripeCustomerID, returnURL)
}

// HandleWebhook синхронизирует подписки с событиями Stripe. Неизвестные
// события и подписки игнорируются.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.provider == nil {
		return errBillingDisabled
	}
	evt, err := s.provider.ConstructWebhookEvent(payload, signature)
	if err != nil {
		return err
	}

	log := logger.WithComponent("subscriptions").WithField("event_id", evt.ID).WithField("type", evt.Type)
	switch evt.Type {
	case billing.EventCheckoutCompleted:
		if evt.Checkout == nil {
			return nil
		}
		return s.checkoutCompleted(ctx, evt.Checkout)
	case billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		if evt.Subscription == nil {
			return nil
		}
		return s.syncStripeSubscription(ctx, evt.SubscriptionID, func(sub *models.Subscription) {
			applyStripeState(sub, evt.Subscription)
			if evt.Type == billing.EventSubscriptionDeleted {
				sub.Status = models.SubscriptionStatusCanceled
				if sub.CanceledAt == nil {
					now := s.now()
					sub.CanceledAt = &now
				}
			}
		})
	case billing.EventInvoicePaymentFailed:
		if evt.SubscriptionID == "" {
			return nil
		}
		return s.syncStripeSubscription(ctx, evt.SubscriptionID, func(sub *models.Subscription) {
			sub.Status = models.SubscriptionStatusPastDue
		})
	default:
		log.Debug("webhook event ignored")
		return nil
	}
}

func (s *SubscriptionService) checkoutCompleted(ctx context.Context, c *billing.CheckoutCompleted) error {
	log := logger.WithComponent("subscriptions").WithField("session_id", c.SessionID)
	if c.UserID == uuid.Nil || c.PlanID == uuid.Nil {
		log.Warn("checkout session without user or plan metadata")
		return nil
	}

	cycle := c.BillingCycle
	if cycle != models.BillingYearly {
		cycle = models.BillingMonthly
	}
	now := s.now()
	sub := &models.Subscription{
		UserID:             c.UserID,
		PlanID:             c.PlanID,
		Status:             models.SubscriptionStatusActive,
		BillingCycle:       cycle,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd(now, cycle),
	}
	if c.CustomerID != "" {
		sub.StripeCustomerID = &c.CustomerID
	}
	if c.SubscriptionID != "" {
		sub.StripeSubscriptionID = &c.SubscriptionID
		state, err := s.provider.RetrieveSubscription(ctx, c.SubscriptionID)
		if err != nil {
			return err
		}
		applyStripeState(sub, state)
	}

	if err := s.repo.ReplaceLive(ctx, sub); err != nil {
		return err
	}
	s.events.Emit(ctx, sub.UserID, events.Inserted(tableSubscriptions, sub))

	name := defaultSubscriptionName
	if plan, err := s.plans.GetPlan(ctx, c.PlanID); err == nil {
		name = plan.Name
	}
	paymentRef := c.PaymentIntentID
	if paymentRef == "" {
		paymentRef = c.SessionID
	}
	_, err := s.purchases.RecordCompleted(ctx, c.UserID, dto.PurchaseRequest{
		ItemType:        models.PurchaseItemPlan,
		ItemID:          &c.PlanID,
		ItemName:        name,
		Amount:          round2(float64(c.AmountTotal) / 100),
		Currency:        strings.ToUpper(c.Currency),
		PaymentIntentID: &paymentRef,
	})
	if apperror.IsConflict(err) {
		log.Info("purchase already recorded")
		return nil
	}
	return err
}

func (s *SubscriptionService) syncStripeSubscription(ctx context.Context, stripeID string, apply func(*models.Subscription)) error {
	sub, err := s.repo.GetByStripeID(ctx, stripeID)
	if apperror.IsNotFound(err) {
		logger.WithComponent("subscriptions").WithField("stripe_subscription_id", stripeID).Warn("unknown stripe subscription")
		return nil
	}
	if err != nil {
		return err
	}

	old := *sub
	apply(sub)
	if err := s.repo.Update(ctx, sub); err != nil {
		return err
	}
	s.events.Emit(ctx, sub.UserID, events.Updated(tableSubscriptions, sub, &old))
	return nil
}

func (s *SubscriptionService) activePlan(ctx context.Context, planID uuid.UUID, cycle string) (*models.Plan, string, error) {
	if cycle == "" {
		cycle = models.BillingMonthly
	}
	if cycle != models.BillingMonthly && cycle != models.BillingYearly {
		return nil, "", apperror.Validation("неверный период оплаты")
	}
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, "", err
	}
	if !plan.IsActive {
		return nil, "", apperror.Validation("тариф недоступен")
	}
	return plan, cycle, nil
}

func periodEnd(start time.Time, cycle string) time.Time {
	if cycle == models.BillingYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// applyStripeState переносит состояние Stripe в локальную подписку.
func applyStripeState(sub *models.Subscription, st *billing.SubscriptionState) {
	sub.Status = mapStripeStatus(st.Status)
	if !st.CurrentPeriodStart.IsZero() {
		sub.CurrentPeriodStart = st.CurrentPeriodStart
	}
	if !st.CurrentPeriodEnd.IsZero() {
		sub.CurrentPeriodEnd = st.CurrentPeriodEnd
	}
	sub.CancelAtPeriodEnd = st.CancelAtPeriodEnd
	if st.CanceledAt != nil {
		sub.CanceledAt = st.CanceledAt
	}
	sub.TrialEnd = st.TrialEnd
	if st.CustomerID != "" {
		customerID := st.CustomerID
		sub.StripeCustomerID = &customerID
	}
}

func mapStripeStatus(status string) string {
	switch status {
	case models.SubscriptionStatusTrialing, models.SubscriptionStatusActive,
		models.SubscriptionStatusPastDue, models.SubscriptionStatusCanceled:
		return status
	case "incomplete_expired":
		return models.SubscriptionStatusCanceled
	default:
		// unpaid, incomplete, paused
		return models.SubscriptionStatusPastDue
	}
}
