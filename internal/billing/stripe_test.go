package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/resilience"
)

const testWebhookSecret = "whsec_test"

type countingErrors struct {
	ops []string
}

func (c *countingErrors) StripeError(op string) { c.ops = append(c.ops, op) }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*StripeClient, *countingErrors) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	counter := &countingErrors{}
	c := NewStripeClient("sk_test_123", testWebhookSecret, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, counter)
	c.retry = resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return c, counter
}

func TestEnsureCustomer_ExistingSkipsAPI(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	id, err := c.EnsureCustomer(context.Background(), "cus_existing", uuid.New(), "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", id)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEnsureCustomer_Creates(t *testing.T) {
	userID := uuid.New()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/customers", r.URL.Path)
		assert.Equal(t, "a@b.c", r.PostForm.Get("email"))
		assert.Equal(t, userID.String(), r.PostForm.Get("metadata[user_id]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cus_new","object":"customer"}`)
	})

	id, err := c.EnsureCustomer(context.Background(), "", userID, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", id)
}

func TestCreateCheckoutSession(t *testing.T) {
	userID, planID := uuid.New(), uuid.New()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "price_1", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "14", r.PostForm.Get("subscription_data[trial_period_days]"))
		assert.Equal(t, planID.String(), r.PostForm.Get("metadata[plan_id]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_1"}`)
	})

	sess, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		CustomerID:   "cus_1",
		PriceID:      "price_1",
		UserID:       userID,
		PlanID:       planID,
		BillingCycle: "monthly",
		TrialDays:    14,
		SuccessURL:   "https://app/ok",
		CancelURL:    "https://app/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", sess.URL)
}

func TestCall_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c, counter := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"No such price"}}`)
	})

	_, err := c.CreatePortalSession(context.Background(), "cus_1", "https://app")
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeBadRequest, apperror.CodeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"portal.create"}, counter.ops)
}

func TestCall_ServerErrorRetried(t *testing.T) {
	var calls int32
	c, counter := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"type":"api_error","message":"boom"}}`)
	})

	_, err := c.RetrieveSubscription(context.Background(), "sub_1")
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeUpstream, apperror.CodeOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, counter.ops, 1)
}

func TestCancelSubscription_AtPeriodEndUpdates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
		assert.Equal(t, "true", r.PostForm.Get("cancel_at_period_end"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"sub_1","object":"subscription","status":"active","cancel_at_period_end":true,
			"current_period_start":1772366400,"current_period_end":1775044800,"customer":"cus_1"}`)
	})

	state, err := c.CancelSubscription(context.Background(), "sub_1", true)
	require.NoError(t, err)
	assert.True(t, state.CancelAtPeriodEnd)
	assert.Equal(t, "cus_1", state.CustomerID)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), state.CurrentPeriodStart)
}

func TestCancelSubscription_Immediate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"sub_1","object":"subscription","status":"canceled","canceled_at":1772366400}`)
	})

	state, err := c.CancelSubscription(context.Background(), "sub_1", false)
	require.NoError(t, err)
	assert.Equal(t, "canceled", state.Status)
	require.NotNil(t, state.CanceledAt)
}

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestConstructWebhookEvent_CheckoutCompleted(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	userID, planID := uuid.New(), uuid.New()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"customer": "cus_1",
			"subscription": "sub_1",
			"amount_total": 1900,
			"currency": "usd",
			"metadata": {"user_id": %q, "plan_id": %q, "billing_cycle": "monthly"}
		}}
	}`, stripe.APIVersion, userID, planID))

	evt, err := c.ConstructWebhookEvent(payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, evt.Type)
	require.NotNil(t, evt.Checkout)
	assert.Equal(t, "sub_1", evt.Checkout.SubscriptionID)
	assert.Equal(t, "cus_1", evt.Checkout.CustomerID)
	assert.Equal(t, int64(1900), evt.Checkout.AmountTotal)
	assert.Equal(t, userID, evt.Checkout.UserID)
	assert.Equal(t, planID, evt.Checkout.PlanID)
	assert.Equal(t, "monthly", evt.Checkout.BillingCycle)
}

func TestConstructWebhookEvent_InvoiceFailed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := []byte(fmt.Sprintf(`{"id":"evt_2","object":"event","api_version":%q,"type":"invoice.payment_failed",
		"data":{"object":{"id":"in_1","object":"invoice","subscription":"sub_9"}}}`, stripe.APIVersion))

	evt, err := c.ConstructWebhookEvent(payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "sub_9", evt.SubscriptionID)
}

func TestConstructWebhookEvent_BadSignature(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	payload := []byte(`{"id":"evt_3","object":"event","type":"invoice.payment_failed"}`)

	_, err := c.ConstructWebhookEvent(payload, sign(payload, "whsec_other", time.Now()))
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeBadRequest, apperror.CodeOf(err))
}
