package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type ProposalHandler struct {
	proposals *service.ProposalService
}

func NewProposalHandler(proposals *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals}
}

// Create POST /proposals
func (h *ProposalHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.ProposalRequest
	if !common.Bind(c, &req) {
		return
	}

	p, err := h.proposals.CreateProposal(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// List GET /proposals
func (h *ProposalHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.proposals.ListProposals(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Get GET /proposals/:id
func (h *ProposalHandler) Get(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}

	p, err := h.proposals.GetProposal(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Update PUT /proposals/:id
func (h *ProposalHandler) Update(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ProposalRequest
	if !common.Bind(c, &req) {
		return
	}

	p, err := h.proposals.UpdateProposal(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Delete DELETE /proposals/:id
func (h *ProposalHandler) Delete(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.proposals.DeleteProposal(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Duplicate POST /proposals/:id/duplicate
func (h *ProposalHandler) Duplicate(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}

	p, err := h.proposals.DuplicateProposal(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// Send POST /proposals/:id/send
func (h *ProposalHandler) Send(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}

	p, err := h.proposals.SendProposal(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Recalculate POST /proposals/:id/recalculate
func (h *ProposalHandler) Recalculate(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}

	totals, err := h.proposals.RecalculateTotal(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, totals)
}

// AddItem POST /proposals/:id/items
func (h *ProposalHandler) AddItem(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.ProposalItemRequest
	if !common.Bind(c, &req) {
		return
	}

	item, totals, err := h.proposals.AddItem(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"item": item, "totals": totals})
}

// UpdateItem PUT /proposals/:id/items/:itemId
func (h *ProposalHandler) UpdateItem(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := common.PathID(c, "itemId")
	if !ok {
		return
	}
	var req dto.ProposalItemRequest
	if !common.Bind(c, &req) {
		return
	}

	item, totals, err := h.proposals.UpdateItem(c.Request.Context(), userID, id, itemID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"item": item, "totals": totals})
}

// RemoveItem DELETE /proposals/:id/items/:itemId
func (h *ProposalHandler) RemoveItem(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := common.PathID(c, "itemId")
	if !ok {
		return
	}

	totals, err := h.proposals.RemoveItem(c.Request.Context(), userID, id, itemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"totals": totals})
}

// Stats GET /proposals/stats
func (h *ProposalHandler) Stats(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	stats, err := h.proposals.Stats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// PublicView GET /public/proposals/:token
func (h *ProposalHandler) PublicView(c *gin.Context) {
	p, err := h.proposals.ViewByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// PublicSign POST /public/proposals/:token/sign
func (h *ProposalHandler) PublicSign(c *gin.Context) {
	var req dto.SignProposalRequest
	if !common.Bind(c, &req) {
		return
	}

	p, err := h.proposals.SignByToken(c.Request.Context(), c.Param("token"), req, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// PublicDecline POST /public/proposals/:token/decline
func (h *ProposalHandler) PublicDecline(c *gin.Context) {
	var req dto.DeclineProposalRequest
	_ = c.ShouldBindJSON(&req)

	p, err := h.proposals.DeclineByToken(c.Request.Context(), c.Param("token"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}
