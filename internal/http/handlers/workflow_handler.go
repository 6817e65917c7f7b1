package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type WorkflowHandler struct {
	workflows *service.WorkflowService
}

func NewWorkflowHandler(workflows *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows}
}

// Create POST /workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.WorkflowRequest
	if !common.Bind(c, &req) {
		return
	}

	w, err := h.workflows.CreateWorkflow(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, w)
}

// List GET /workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.workflows.ListWorkflows(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Get GET /workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	w, err := h.workflows.GetWorkflow(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, w)
}

// Update PUT /workflows/:id
func (h *WorkflowHandler) Update(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.WorkflowRequest
	if !common.Bind(c, &req) {
		return
	}

	w, err := h.workflows.UpdateWorkflow(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, w)
}

// Delete DELETE /workflows/:id
func (h *WorkflowHandler) Delete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	if err := h.workflows.DeleteWorkflow(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetActions PUT /workflows/:id/actions
func (h *WorkflowHandler) SetActions(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.WorkflowActionsRequest
	if !common.Bind(c, &req) {
		return
	}

	actions, err := h.workflows.SetActions(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, actions)
}

// Execute POST /workflows/:id/execute
func (h *WorkflowHandler) Execute(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.ExecuteWorkflowRequest
	if c.Request.ContentLength > 0 && !common.Bind(c, &req) {
		return
	}

	exec, err := h.workflows.ExecuteWorkflow(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.Async {
		response.Accepted(c, exec)
		return
	}
	response.Success(c, exec)
}

// ListExecutions GET /workflows/:id/executions
func (h *WorkflowHandler) ListExecutions(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.workflows.ListExecutions(c.Request.Context(), userID, id, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// GetExecution GET /workflow-executions/:id
func (h *WorkflowHandler) GetExecution(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	exec, err := h.workflows.GetExecution(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, exec)
}

// CancelExecution POST /workflow-executions/:id/cancel
func (h *WorkflowHandler) CancelExecution(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	exec, err := h.workflows.CancelExecution(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, exec)
}

// CreateSchedule POST /workflows/:id/schedules
func (h *WorkflowHandler) CreateSchedule(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.ScheduleRequest
	if !common.Bind(c, &req) {
		return
	}

	sch, err := h.workflows.CreateSchedule(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sch)
}

// ListSchedules GET /workflows/:id/schedules
func (h *WorkflowHandler) ListSchedules(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	items, err := h.workflows.ListSchedules(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// UpdateSchedule PUT /workflows/:id/schedules/:scheduleId
func (h *WorkflowHandler) UpdateSchedule(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	scheduleID, ok := common.PathID(c, "scheduleId")
	if !ok {
		return
	}
	var req dto.ScheduleRequest
	if !common.Bind(c, &req) {
		return
	}

	sch, err := h.workflows.UpdateSchedule(c.Request.Context(), userID, id, scheduleID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, sch)
}

// DeleteSchedule DELETE /workflows/:id/schedules/:scheduleId
func (h *WorkflowHandler) DeleteSchedule(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	scheduleID, ok := common.PathID(c, "scheduleId")
	if !ok {
		return
	}
	if err := h.workflows.DeleteSchedule(c.Request.Context(), userID, id, scheduleID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
