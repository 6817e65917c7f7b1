package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type SEOHandler struct {
	seo *service.SEOService
}

func NewSEOHandler(seo *service.SEOService) *SEOHandler {
	return &SEOHandler{seo: seo}
}

// Analyze POST /seo/analyze
func (h *SEOHandler) Analyze(c *gin.Context) {
	if _, ok := common.RequireUser(c); !ok {
		return
	}
	var req dto.SEOAnalyzeRequest
	if !common.Bind(c, &req) {
		return
	}

	report, err := h.seo.Analyze(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// AnalyzeContent POST /content/:id/seo
func (h *SEOHandler) AnalyzeContent(c *gin.Context) {
	userID, contentID, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.SEOContentRequest
	if c.Request.ContentLength > 0 && !common.Bind(c, &req) {
		return
	}

	result, err := h.seo.AnalyzeContent(c.Request.Context(), userID, contentID, req.Keyword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListAnalyses GET /content/:id/seo
func (h *SEOHandler) ListAnalyses(c *gin.Context) {
	userID, contentID, ok := common.UserAndID(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.seo.ListAnalyses(c.Request.Context(), userID, contentID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}
