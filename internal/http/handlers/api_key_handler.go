package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type APIKeyHandler struct {
	keys *service.APIKeyService
}

func NewAPIKeyHandler(keys *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

// Create POST /api-keys
func (h *APIKeyHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.APIKeyRequest
	if !common.Bind(c, &req) {
		return
	}

	issued, err := h.keys.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}

// List GET /api-keys
func (h *APIKeyHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	keys, err := h.keys.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, keys)
}

// Revoke DELETE /api-keys/:id
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	key, err := h.keys.Revoke(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, key)
}

// Rotate POST /api-keys/:id/rotate
func (h *APIKeyHandler) Rotate(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	issued, err := h.keys.Rotate(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issued)
}
