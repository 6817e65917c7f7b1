package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type TimesheetHandler struct {
	timesheets *service.TimesheetService
}

func NewTimesheetHandler(timesheets *service.TimesheetService) *TimesheetHandler {
	return &TimesheetHandler{timesheets: timesheets}
}

type entryResponse struct {
	Entry  *models.TimesheetEntry  `json:"entry,omitempty"`
	Totals *models.TimesheetTotals `json:"totals"`
}

// Create POST /timesheets
func (h *TimesheetHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.TimesheetRequest
	if !common.Bind(c, &req) {
		return
	}

	ts, err := h.timesheets.CreateTimesheet(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ts)
}

// List GET /timesheets
func (h *TimesheetHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.timesheets.ListTimesheets(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Get GET /timesheets/:id
func (h *TimesheetHandler) Get(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	ts, err := h.timesheets.GetTimesheet(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ts)
}

// Update PUT /timesheets/:id
func (h *TimesheetHandler) Update(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.TimesheetRequest
	if !common.Bind(c, &req) {
		return
	}

	ts, err := h.timesheets.UpdateTimesheet(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ts)
}

// Delete DELETE /timesheets/:id
func (h *TimesheetHandler) Delete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	if err := h.timesheets.DeleteTimesheet(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddEntry POST /timesheets/:id/entries
func (h *TimesheetHandler) AddEntry(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.TimesheetEntryRequest
	if !common.Bind(c, &req) {
		return
	}

	entry, totals, err := h.timesheets.AddEntry(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entryResponse{Entry: entry, Totals: totals})
}

// UpdateEntry PUT /timesheets/:id/entries/:entryId
func (h *TimesheetHandler) UpdateEntry(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	entryID, ok := common.PathID(c, "entryId")
	if !ok {
		return
	}
	var req dto.TimesheetEntryRequest
	if !common.Bind(c, &req) {
		return
	}

	entry, totals, err := h.timesheets.UpdateEntry(c.Request.Context(), userID, id, entryID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entryResponse{Entry: entry, Totals: totals})
}

// DeleteEntry DELETE /timesheets/:id/entries/:entryId
func (h *TimesheetHandler) DeleteEntry(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	entryID, ok := common.PathID(c, "entryId")
	if !ok {
		return
	}

	totals, err := h.timesheets.DeleteEntry(c.Request.Context(), userID, id, entryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entryResponse{Totals: totals})
}

// Submit POST /timesheets/:id/submit
func (h *TimesheetHandler) Submit(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	ts, err := h.timesheets.Submit(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ts)
}

// Approve POST /timesheets/:id/approve
func (h *TimesheetHandler) Approve(c *gin.Context) {
	h.decide(c, h.timesheets.Approve)
}

// Reject POST /timesheets/:id/reject
func (h *TimesheetHandler) Reject(c *gin.Context) {
	h.decide(c, h.timesheets.Reject)
}

type decisionFunc func(ctx context.Context, approverID, id uuid.UUID, comment *string) (*models.Timesheet, error)

func (h *TimesheetHandler) decide(c *gin.Context, fn decisionFunc) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.TimesheetDecisionRequest
	if c.Request.ContentLength > 0 && !common.Bind(c, &req) {
		return
	}

	ts, err := fn(c.Request.Context(), userID, id, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ts)
}

// Weekly GET /timesheets/weekly?week_start=2006-01-02
func (h *TimesheetHandler) Weekly(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	weekStart := time.Now().UTC()
	if raw := c.Query("week_start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.BadRequest(c, "неверный week_start")
			return
		}
		weekStart = parsed
	} else {
		// начало текущей недели (понедельник)
		offset := (int(weekStart.Weekday()) + 6) % 7
		weekStart = weekStart.AddDate(0, 0, -offset)
	}

	days, err := h.timesheets.WeeklySummary(c.Request.Context(), userID, weekStart)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, days)
}
