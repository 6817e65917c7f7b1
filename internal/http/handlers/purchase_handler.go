package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type PurchaseHandler struct {
	purchases *service.PurchaseService
}

func NewPurchaseHandler(purchases *service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

// Create POST /purchases
func (h *PurchaseHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.PurchaseRequest
	if !common.Bind(c, &req) {
		return
	}

	p, err := h.purchases.CreatePurchase(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// List GET /purchases
func (h *PurchaseHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.purchases.ListPurchases(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Get GET /purchases/:id
func (h *PurchaseHandler) Get(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	p, err := h.purchases.GetPurchase(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Complete POST /purchases/:id/complete
func (h *PurchaseHandler) Complete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.CompletePurchaseRequest
	if c.Request.ContentLength > 0 && !common.Bind(c, &req) {
		return
	}

	p, err := h.purchases.CompletePurchase(c.Request.Context(), userID, id, req.PaymentIntentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Fail POST /purchases/:id/fail
func (h *PurchaseHandler) Fail(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	p, err := h.purchases.FailPurchase(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Refund POST /purchases/:id/refund
func (h *PurchaseHandler) Refund(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.RefundRequest
	if !common.Bind(c, &req) {
		return
	}

	p, err := h.purchases.RefundPurchase(c.Request.Context(), userID, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Owns GET /purchases/owned?item_type=&item_id=
func (h *PurchaseHandler) Owns(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Query("item_id"))
	if err != nil {
		response.BadRequest(c, "неверный item_id")
		return
	}

	owned, err := h.purchases.HasPurchased(c.Request.Context(), userID, c.Query("item_type"), itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"purchased": owned})
}

// Stats GET /purchases/stats
func (h *PurchaseHandler) Stats(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	stats, err := h.purchases.PurchaseStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
