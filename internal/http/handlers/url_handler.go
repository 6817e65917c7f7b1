package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type URLHandler struct {
	urls *service.URLService
}

func NewURLHandler(urls *service.URLService) *URLHandler {
	return &URLHandler{urls: urls}
}

// Redirect GET /r/:code
func (h *URLHandler) Redirect(c *gin.Context) {
	meta := models.ClickMeta{
		Referrer:  c.Request.Referer(),
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
		Country:   countryHeader(c),
	}

	target, err := h.urls.Resolve(c.Request.Context(), c.Param("code"), meta)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// countryHeader берёт страну из заголовков CDN.
func countryHeader(c *gin.Context) string {
	for _, h := range []string{"CF-IPCountry", "X-Vercel-IP-Country", "X-Country-Code"} {
		if v := c.GetHeader(h); v != "" && v != "XX" {
			return v
		}
	}
	return ""
}

// Create POST /urls
func (h *URLHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.ShortURLRequest
	if !common.Bind(c, &req) {
		return
	}

	u, err := h.urls.CreateShortURL(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, u)
}

// List GET /urls?search=
func (h *URLHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	items, total, err := h.urls.ListShortURLs(c.Request.Context(), userID, c.Query("search"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Get GET /urls/:id
func (h *URLHandler) Get(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	u, err := h.urls.GetShortURL(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// Update PUT /urls/:id
func (h *URLHandler) Update(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.ShortURLUpdateRequest
	if !common.Bind(c, &req) {
		return
	}

	u, err := h.urls.UpdateShortURL(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// Delete DELETE /urls/:id
func (h *URLHandler) Delete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	if err := h.urls.DeleteShortURL(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Toggle POST /urls/:id/toggle
func (h *URLHandler) Toggle(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	u, err := h.urls.ToggleActive(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// AddRedirect POST /urls/:id/redirects
func (h *URLHandler) AddRedirect(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.RedirectRequest
	if !common.Bind(c, &req) {
		return
	}

	rd, err := h.urls.AddRedirect(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rd)
}

// ListRedirects GET /urls/:id/redirects
func (h *URLHandler) ListRedirects(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	items, err := h.urls.ListRedirects(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// DeleteRedirect DELETE /urls/:id/redirects/:redirectId
func (h *URLHandler) DeleteRedirect(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	redirectID, ok := common.PathID(c, "redirectId")
	if !ok {
		return
	}

	if err := h.urls.DeleteRedirect(c.Request.Context(), userID, id, redirectID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats GET /urls/:id/stats?days=30
func (h *URLHandler) Stats(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	stats, err := h.urls.ClickStats(c.Request.Context(), userID, id, common.ParseIntQuery(c, "days", 30))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
