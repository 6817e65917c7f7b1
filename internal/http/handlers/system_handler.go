package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type SystemHandler struct {
	system *service.SystemService
}

func NewSystemHandler(system *service.SystemService) *SystemHandler {
	return &SystemHandler{system: system}
}

// ListSettings GET /system/settings
func (h *SystemHandler) ListSettings(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	settings, err := h.system.GetSettings(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, settings)
}

// GetSetting GET /system/settings/:key
func (h *SystemHandler) GetSetting(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	setting, err := h.system.GetSetting(c.Request.Context(), userID, c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, setting)
}

// PutSetting PUT /system/settings/:key
func (h *SystemHandler) PutSetting(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.SettingRequest
	if !common.Bind(c, &req) {
		return
	}

	setting, err := h.system.UpsertSetting(c.Request.Context(), userID, c.Param("key"), req.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, setting)
}

// DeleteSetting DELETE /system/settings/:key
func (h *SystemHandler) DeleteSetting(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	if err := h.system.DeleteSetting(c.Request.Context(), userID, c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// WriteLog POST /system/logs
func (h *SystemHandler) WriteLog(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.LogRequest
	if !common.Bind(c, &req) {
		return
	}

	entry, err := h.system.WriteLog(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// ListLogs GET /system/logs
func (h *SystemHandler) ListLogs(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	logs, err := h.system.ListLogs(c.Request.Context(), userID, c.Query("level"), c.Query("source"),
		common.ParseIntQuery(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, logs)
}

// PurgeLogs DELETE /system/logs?older_than_days=
func (h *SystemHandler) PurgeLogs(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	removed, err := h.system.PurgeLogs(c.Request.Context(), userID, common.ParseIntQuery(c, "older_than_days", 30))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"removed": removed})
}

// CreateAlert POST /system/alerts
func (h *SystemHandler) CreateAlert(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.AlertRequest
	if !common.Bind(c, &req) {
		return
	}

	alert, err := h.system.CreateAlert(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, alert)
}

// ListAlerts GET /system/alerts
func (h *SystemHandler) ListAlerts(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	alerts, err := h.system.ListAlerts(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, alerts)
}

// AcknowledgeAlert POST /system/alerts/:id/acknowledge
func (h *SystemHandler) AcknowledgeAlert(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	alert, err := h.system.AcknowledgeAlert(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, alert)
}

// ResolveAlert POST /system/alerts/:id/resolve
func (h *SystemHandler) ResolveAlert(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	alert, err := h.system.ResolveAlert(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, alert)
}

// Status GET /system/status
func (h *SystemHandler) Status(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	status, err := h.system.SystemStatus(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}
