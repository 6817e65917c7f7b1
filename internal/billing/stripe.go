// Package billing оборачивает вызовы Stripe: предохранитель, повторы и
// перевод объектов stripe-go в простые структуры для сервисов.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ignatzorin/kazi-backend/internal/logger"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/resilience"
)

// Типы событий webhook, которые обрабатывает приложение.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

const (
	metadataUserID       = "user_id"
	metadataPlanID       = "plan_id"
	metadataBillingCycle = "billing_cycle"
	webhookTolerance     = 5 * time.Minute
)

// ErrorCounter считает неудачные вызовы API.
type ErrorCounter interface {
	StripeError(operation string)
}

// CheckoutParams параметры сессии оплаты подписки.
type CheckoutParams struct {
	CustomerID   string
	PriceID      string
	UserID       uuid.UUID
	PlanID       uuid.UUID
	BillingCycle string
	TrialDays    int
	SuccessURL   string
	CancelURL    string
}

// Session ссылка на страницу Stripe.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SubscriptionState состояние подписки на стороне Stripe.
type SubscriptionState struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	TrialEnd           *time.Time
	Metadata           map[string]string
}

// CheckoutCompleted итог оплаченной сессии.
type CheckoutCompleted struct {
	SessionID       string
	CustomerID      string
	SubscriptionID  string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	UserID          uuid.UUID
	PlanID          uuid.UUID
	BillingCycle    string
}

// Event разобранное событие webhook. Заполнено только поле, соответствующее типу.
type Event struct {
	ID             string
	Type           string
	Checkout       *CheckoutCompleted
	Subscription   *SubscriptionState
	SubscriptionID string
}

// StripeClient вызывает API Stripe через предохранитель.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker
	retry         resilience.Config
	errors        ErrorCounter
}

// NewStripeClient создаёт клиента. backends может быть nil, тогда используется API Stripe.
func NewStripeClient(secretKey, webhookSecret string, backends *stripe.Backends, counter ErrorCounter) *StripeClient {
	return &StripeClient{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		breaker:       resilience.NewCircuitBreaker("stripe"),
		retry:         resilience.DefaultConfig,
		errors:        counter,
	}
}

// EnsureCustomer возвращает существующего клиента Stripe или создаёт нового.
func (c *StripeClient) EnsureCustomer(ctx context.Context, customerID string, userID uuid.UUID, email string) (string, error) {
	if customerID != "" {
		return customerID, nil
	}

	cust, err := call(ctx, c, "customer.create", func() (*stripe.Customer, error) {
		params := &stripe.CustomerParams{}
		params.Context = ctx
		if email != "" {
			params.Email = stripe.String(email)
		}
		params.AddMetadata(metadataUserID, userID.String())
		return c.api.Customers.New(params)
	})
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

// CreateCheckoutSession создаёт сессию оплаты подписки.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	sess, err := call(ctx, c, "checkout.create", func() (*stripe.CheckoutSession, error) {
		params := &stripe.CheckoutSessionParams{
			Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
			Customer:          stripe.String(p.CustomerID),
			SuccessURL:        stripe.String(p.SuccessURL),
			CancelURL:         stripe.String(p.CancelURL),
			ClientReferenceID: stripe.String(p.UserID.String()),
			LineItems: []*stripe.CheckoutSessionLineItemParams{
				{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
			},
			SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
				Metadata: map[string]string{
					metadataUserID:       p.UserID.String(),
					metadataPlanID:       p.PlanID.String(),
					metadataBillingCycle: p.BillingCycle,
				},
			},
		}
		if p.TrialDays > 0 {
			params.SubscriptionData.TrialPeriodDays = stripe.Int64(int64(p.TrialDays))
		}
		params.Context = ctx
		params.AddMetadata(metadataUserID, p.UserID.String())
		params.AddMetadata(metadataPlanID, p.PlanID.String())
		params.AddMetadata(metadataBillingCycle, p.BillingCycle)
		return c.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return nil, err
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession создаёт сессию клиентского портала.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error) {
	sess, err := call(ctx, c, "portal.create", func() (*stripe.BillingPortalSession, error) {
		params := &stripe.BillingPortalSessionParams{
			Customer:  stripe.String(customerID),
			ReturnURL: stripe.String(returnURL),
		}
		params.Context = ctx
		return c.api.BillingPortalSessions.New(params)
	})
	if err != nil {
		return nil, err
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// CancelSubscription отменяет подписку сразу или в конце периода.
func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*SubscriptionState, error) {
	if atPeriodEnd {
		return c.setCancelAtPeriodEnd(ctx, "subscription.cancel", subscriptionID, true)
	}

	sub, err := call(ctx, c, "subscription.cancel", func() (*stripe.Subscription, error) {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		return c.api.Subscriptions.Cancel(subscriptionID, params)
	})
	if err != nil {
		return nil, err
	}
	return subscriptionState(sub), nil
}

// ResumeSubscription снимает отмену в конце периода.
func (c *StripeClient) ResumeSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	return c.setCancelAtPeriodEnd(ctx, "subscription.resume", subscriptionID, false)
}

func (c *StripeClient) setCancelAtPeriodEnd(ctx context.Context, op, subscriptionID string, cancel bool) (*SubscriptionState, error) {
	sub, err := call(ctx, c, op, func() (*stripe.Subscription, error) {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
		params.Context = ctx
		return c.api.Subscriptions.Update(subscriptionID, params)
	})
	if err != nil {
		return nil, err
	}
	return subscriptionState(sub), nil
}

// RetrieveSubscription читает подписку из Stripe.
func (c *StripeClient) RetrieveSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	sub, err := call(ctx, c, "subscription.get", func() (*stripe.Subscription, error) {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx
		return c.api.Subscriptions.Get(subscriptionID, params)
	})
	if err != nil {
		return nil, err
	}
	return subscriptionState(sub), nil
}

// ConstructWebhookEvent проверяет подпись и разбирает событие.
// Неизвестные типы возвращаются без данных.
func (c *StripeClient) ConstructWebhookEvent(payload []byte, signature string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "неверная подпись webhook")
	}
	return parseEvent(evt)
}

func parseEvent(evt stripe.Event) (*Event, error) {
	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "неверные данные сессии")
		}
		out.Checkout = checkoutCompleted(&sess)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "неверные данные подписки")
		}
		out.Subscription = subscriptionState(&sub)
		out.SubscriptionID = sub.ID
	case EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "неверные данные счёта")
		}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
	}
	return out, nil
}

func checkoutCompleted(sess *stripe.CheckoutSession) *CheckoutCompleted {
	out := &CheckoutCompleted{
		SessionID:    sess.ID,
		AmountTotal:  sess.AmountTotal,
		Currency:     string(sess.Currency),
		BillingCycle: sess.Metadata[metadataBillingCycle],
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	out.UserID, _ = uuid.Parse(sess.Metadata[metadataUserID])
	if out.UserID == uuid.Nil {
		out.UserID, _ = uuid.Parse(sess.ClientReferenceID)
	}
	out.PlanID, _ = uuid.Parse(sess.Metadata[metadataPlanID])
	return out
}

func subscriptionState(sub *stripe.Subscription) *SubscriptionState {
	out := &SubscriptionState{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: unix(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unix(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         unixPtr(sub.CanceledAt),
		TrialEnd:           unixPtr(sub.TrialEnd),
		Metadata:           sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	return out
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := unix(sec)
	return &t
}

// call выполняет запрос через предохранитель; клиентские ошибки Stripe не повторяются.
func call[T any](ctx context.Context, c *StripeClient, op string, fn func() (T, error)) (T, error) {
	out, err := resilience.Call(ctx, c.breaker, c.retry, func() (T, error) {
		res, err := fn()
		if err != nil && !retryable(err) {
			return res, &resilience.Permanent{Err: err}
		}
		return res, err
	})
	if err != nil {
		if c.errors != nil {
			c.errors.StripeError(op)
		}
		logger.WithComponent("billing").WithError(err).WithField("operation", op).Warn("stripe call failed")
		return out, upstreamError(err)
	}
	return out, nil
}

func retryable(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return true
	}
	return se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= http.StatusInternalServerError
}

func upstreamError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != http.StatusTooManyRequests {
		msg := se.Msg
		if msg == "" {
			msg = "запрос отклонён платёжным провайдером (" + strconv.Itoa(se.HTTPStatusCode) + ")"
		}
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, msg)
	}
	return apperror.Wrap(err, apperror.ErrCodeUpstream, fmt.Sprintf("платёжный провайдер недоступен: %s", errorKind(err)))
}

func errorKind(err error) string {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "цепь разомкнута"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "таймаут"
	}
	return "ошибка запроса"
}
