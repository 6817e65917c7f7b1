package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type PlanHandler struct {
	plans *service.PlanService
}

func NewPlanHandler(plans *service.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// List GET /plans (публичный каталог; ?all=true для администратора)
func (h *PlanHandler) List(c *gin.Context) {
	all := common.ParseBoolQuery(c, "all")
	includeInactive := all != nil && *all && common.IsAdmin(c)

	plans, err := h.plans.ListPlans(c.Request.Context(), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plans)
}

// GetBySlug GET /plans/:slug
func (h *PlanHandler) GetBySlug(c *gin.Context) {
	plan, err := h.plans.GetPlanBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plan)
}

// Compare GET /plans/compare
func (h *PlanHandler) Compare(c *gin.Context) {
	cmp, err := h.plans.ComparePlans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, cmp)
}

// Get GET /admin/plans/:id
func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}

	plan, err := h.plans.GetPlan(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plan)
}

// Create POST /admin/plans
func (h *PlanHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.PlanRequest
	if !common.Bind(c, &req) {
		return
	}

	plan, err := h.plans.CreatePlan(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Update PUT /admin/plans/:id
func (h *PlanHandler) Update(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.PlanRequest
	if !common.Bind(c, &req) {
		return
	}

	plan, err := h.plans.UpdatePlan(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plan)
}

// Deactivate DELETE /admin/plans/:id
func (h *PlanHandler) Deactivate(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	if err := h.plans.DeactivatePlan(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetFeatures PUT /admin/plans/:id/features
func (h *PlanHandler) SetFeatures(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.PlanFeaturesRequest
	if !common.Bind(c, &req) {
		return
	}

	plan, err := h.plans.SetFeatures(c.Request.Context(), userID, id, req.Features)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plan)
}
