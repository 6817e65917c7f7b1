package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

// maxWebhookBody предел размера тела webhook Stripe.
const maxWebhookBody = 64 << 10

type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Current GET /subscriptions/current
func (h *SubscriptionHandler) Current(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	sub, err := h.subscriptions.GetCurrent(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sub)
}

// Subscribe POST /subscriptions
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.SubscribeRequest
	if !common.Bind(c, &req) {
		return
	}

	sub, err := h.subscriptions.Subscribe(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// ChangePlan PUT /subscriptions/current/plan
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.SubscribeRequest
	if !common.Bind(c, &req) {
		return
	}

	sub, err := h.subscriptions.ChangePlan(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sub)
}

// Cancel POST /subscriptions/current/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.CancelSubscriptionRequest
	if c.Request.ContentLength > 0 && !common.Bind(c, &req) {
		return
	}

	sub, err := h.subscriptions.Cancel(c.Request.Context(), userID, req.Immediate)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sub)
}

// Resume POST /subscriptions/current/resume
func (h *SubscriptionHandler) Resume(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	sub, err := h.subscriptions.Resume(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sub)
}

// History GET /subscriptions
func (h *SubscriptionHandler) History(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.subscriptions.ListHistory(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Checkout POST /billing/checkout
func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.CheckoutRequest
	if !common.Bind(c, &req) {
		return
	}

	sess, err := h.subscriptions.CreateCheckoutSession(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// Portal POST /billing/portal
func (h *SubscriptionHandler) Portal(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.PortalRequest
	if c.Request.ContentLength > 0 && !common.Bind(c, &req) {
		return
	}

	sess, err := h.subscriptions.CreatePortalSession(c.Request.Context(), userID, req.ReturnURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// Webhook POST /billing/webhook (без авторизации, проверяется подпись Stripe)
func (h *SubscriptionHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "слишком большое тело запроса")
		return
	}

	if err := h.subscriptions.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"received": true})
}
