package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

// PortfolioHandler обслуживает маршруты портфолио.
type PortfolioHandler struct {
	portfolio *service.PortfolioService
}

func NewPortfolioHandler(portfolio *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio}
}

// Create POST /portfolio
func (h *PortfolioHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.PortfolioRequest
	if !common.Bind(c, &req) {
		return
	}
	item, err := h.portfolio.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// ListMine GET /portfolio
func (h *PortfolioHandler) ListMine(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	h.list(c, &userID)
}

// ListPublic GET /public/portfolio?user_id=&category=&featured=
func (h *PortfolioHandler) ListPublic(c *gin.Context) {
	var owner *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "неверный user_id")
			return
		}
		owner = &id
	}
	h.list(c, owner)
}

func (h *PortfolioHandler) list(c *gin.Context, owner *uuid.UUID) {
	limit, offset := common.GetPagination(c)
	filter := models.PortfolioFilter{
		UserID:   owner,
		Category: c.Query("category"),
		Featured: common.ParseBoolQuery(c, "featured"),
		Limit:    limit,
		Offset:   offset,
	}
	items, total, err := h.portfolio.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// GetPublic GET /public/portfolio/:id, засчитывает просмотр.
func (h *PortfolioHandler) GetPublic(c *gin.Context) {
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}
	viewerID, _ := common.CurrentUserID(c)

	ctx := c.Request.Context()
	views, err := h.portfolio.RecordView(ctx, viewerID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.portfolio.Get(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	item.ViewCount = views
	response.Success(c, item)
}

// Update PUT /portfolio/:id
func (h *PortfolioHandler) Update(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.PortfolioRequest
	if !common.Bind(c, &req) {
		return
	}
	item, err := h.portfolio.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// Delete DELETE /portfolio/:id
func (h *PortfolioHandler) Delete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	if err := h.portfolio.Delete(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ToggleFeatured POST /portfolio/:id/feature
func (h *PortfolioHandler) ToggleFeatured(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	item, err := h.portfolio.ToggleFeatured(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// Reorder PUT /portfolio/order
func (h *PortfolioHandler) Reorder(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.PortfolioOrderRequest
	if !common.Bind(c, &req) {
		return
	}
	if err := h.portfolio.Reorder(c.Request.Context(), userID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Like POST /portfolio/:id/like
func (h *PortfolioHandler) Like(c *gin.Context) {
	h.like(c, h.portfolio.Like)
}

// Unlike DELETE /portfolio/:id/like
func (h *PortfolioHandler) Unlike(c *gin.Context) {
	h.like(c, h.portfolio.Unlike)
}

// LikeStatus GET /portfolio/:id/like
func (h *PortfolioHandler) LikeStatus(c *gin.Context) {
	h.like(c, h.portfolio.LikeStatus)
}

func (h *PortfolioHandler) like(c *gin.Context, fn func(ctx context.Context, userID, id uuid.UUID) (*service.LikeState, error)) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	state, err := fn(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, state)
}

// Stats GET /portfolio/stats
func (h *PortfolioHandler) Stats(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	stats, err := h.portfolio.Stats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
