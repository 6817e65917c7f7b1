package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/kazi-backend/internal/service"
)

func TestSubscriptionHandler_Subscribe_BadCycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &SubscriptionHandler{subscriptions: nil}
	r.POST("/subscriptions", handler.Subscribe)

	body := `{"plan_id":"` + uuid.NewString() + `","billing_cycle":"weekly"}`
	req, _ := http.NewRequest("POST", "/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionHandler_Current_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &SubscriptionHandler{subscriptions: nil}
	r.GET("/subscriptions/current", handler.Current)

	req, _ := http.NewRequest("GET", "/subscriptions/current", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubscriptionHandler_Webhook_BillingDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := service.NewSubscriptionService(nil, nil, nil, nil, service.BillingURLs{}, nil)
	handler := NewSubscriptionHandler(svc)
	r.POST("/billing/webhook", handler.Webhook)

	req, _ := http.NewRequest("POST", "/billing/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
