package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type TutorialHandler struct {
	tutorials *service.TutorialService
}

func NewTutorialHandler(tutorials *service.TutorialService) *TutorialHandler {
	return &TutorialHandler{tutorials: tutorials}
}

// ListPublished GET /public/tutorials?category=&difficulty=
func (h *TutorialHandler) ListPublished(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	items, total, err := h.tutorials.ListPublished(c.Request.Context(), c.Query("category"), c.Query("difficulty"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// GetPublic GET /public/tutorials/:id
func (h *TutorialHandler) GetPublic(c *gin.Context) {
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}

	t, err := h.tutorials.GetTutorial(c.Request.Context(), uuid.Nil, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// Create POST /tutorials
func (h *TutorialHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.TutorialRequest
	if !common.Bind(c, &req) {
		return
	}

	t, err := h.tutorials.CreateTutorial(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, t)
}

// ListMine GET /tutorials
func (h *TutorialHandler) ListMine(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.tutorials.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Get GET /tutorials/:id
func (h *TutorialHandler) Get(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	t, err := h.tutorials.GetTutorial(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// Update PUT /tutorials/:id
func (h *TutorialHandler) Update(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.TutorialRequest
	if !common.Bind(c, &req) {
		return
	}

	t, err := h.tutorials.UpdateTutorial(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// Publish POST /tutorials/:id/publish
func (h *TutorialHandler) Publish(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	t, err := h.tutorials.Publish(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// Unpublish POST /tutorials/:id/unpublish
func (h *TutorialHandler) Unpublish(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	t, err := h.tutorials.Unpublish(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// Delete DELETE /tutorials/:id
func (h *TutorialHandler) Delete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	if err := h.tutorials.DeleteTutorial(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddStep POST /tutorials/:id/steps
func (h *TutorialHandler) AddStep(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.TutorialStepRequest
	if !common.Bind(c, &req) {
		return
	}

	step, err := h.tutorials.AddStep(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, step)
}

// UpdateStep PUT /tutorials/:id/steps/:stepId
func (h *TutorialHandler) UpdateStep(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	stepID, ok := common.PathID(c, "stepId")
	if !ok {
		return
	}
	var req dto.TutorialStepRequest
	if !common.Bind(c, &req) {
		return
	}

	step, err := h.tutorials.UpdateStep(c.Request.Context(), userID, id, stepID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, step)
}

// DeleteStep DELETE /tutorials/:id/steps/:stepId
func (h *TutorialHandler) DeleteStep(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	stepID, ok := common.PathID(c, "stepId")
	if !ok {
		return
	}

	if err := h.tutorials.DeleteStep(c.Request.Context(), userID, id, stepID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Start POST /tutorials/:id/start
func (h *TutorialHandler) Start(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	p, err := h.tutorials.StartTutorial(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// CompleteStep POST /tutorials/:id/steps/:stepId/complete
func (h *TutorialHandler) CompleteStep(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	stepID, ok := common.PathID(c, "stepId")
	if !ok {
		return
	}

	p, err := h.tutorials.CompleteStep(c.Request.Context(), userID, id, stepID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Progress GET /tutorials/:id/progress
func (h *TutorialHandler) Progress(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	p, err := h.tutorials.GetProgress(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// MyProgress GET /tutorials/progress
func (h *TutorialHandler) MyProgress(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	items, err := h.tutorials.ListMyProgress(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}
