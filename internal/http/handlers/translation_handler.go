package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type TranslationHandler struct {
	translations *service.TranslationService
}

func NewTranslationHandler(translations *service.TranslationService) *TranslationHandler {
	return &TranslationHandler{translations: translations}
}

// CreateKey POST /translations/keys
func (h *TranslationHandler) CreateKey(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.TranslationKeyRequest
	if !common.Bind(c, &req) {
		return
	}

	key, err := h.translations.CreateKey(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, key)
}

// ListKeys GET /translations/keys?namespace=&search=
func (h *TranslationHandler) ListKeys(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	keys, total, err := h.translations.ListKeys(c.Request.Context(), userID, c.Query("namespace"), c.Query("search"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, keys, total, limit, offset)
}

// UpdateKey PUT /translations/keys/:id
func (h *TranslationHandler) UpdateKey(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.TranslationKeyRequest
	if !common.Bind(c, &req) {
		return
	}

	key, err := h.translations.UpdateKey(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, key)
}

// DeleteKey DELETE /translations/keys/:id
func (h *TranslationHandler) DeleteKey(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	if err := h.translations.DeleteKey(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Upsert PUT /translations/keys/:id/values
func (h *TranslationHandler) Upsert(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.TranslationRequest
	if !common.Bind(c, &req) {
		return
	}

	tr, err := h.translations.UpsertTranslation(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tr)
}

// List GET /translations/locales/:locale
func (h *TranslationHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	items, err := h.translations.ListTranslations(c.Request.Context(), userID, c.Param("locale"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// Approve POST /translations/:id/approve
func (h *TranslationHandler) Approve(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	tr, err := h.translations.ApproveTranslation(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tr)
}

// Import POST /translations/import
func (h *TranslationHandler) Import(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.BulkImportRequest
	if !common.Bind(c, &req) {
		return
	}

	n, err := h.translations.BulkImport(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"imported": n})
}

// Export GET /translations/locales/:locale/export
func (h *TranslationHandler) Export(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	out, err := h.translations.ExportLocale(c.Request.Context(), userID, c.Param("locale"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, out)
}

// Progress GET /translations/progress
func (h *TranslationHandler) Progress(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	items, err := h.translations.Progress(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}
