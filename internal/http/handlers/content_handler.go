package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type ContentHandler struct {
	content *service.ContentService
}

func NewContentHandler(content *service.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// Create POST /content
func (h *ContentHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.ContentRequest
	if !common.Bind(c, &req) {
		return
	}

	item, err := h.content.CreateContent(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// List GET /content
func (h *ContentHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)
	filter := models.ContentFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}

	items, total, err := h.content.ListContent(c.Request.Context(), userID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Get GET /content/:id
func (h *ContentHandler) Get(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	item, err := h.content.GetContent(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// Update PUT /content/:id
func (h *ContentHandler) Update(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.ContentRequest
	if !common.Bind(c, &req) {
		return
	}

	item, err := h.content.UpdateContent(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// Publish POST /content/:id/publish
func (h *ContentHandler) Publish(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	item, err := h.content.PublishContent(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// Archive POST /content/:id/archive
func (h *ContentHandler) Archive(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	item, err := h.content.ArchiveContent(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// Delete DELETE /content/:id
func (h *ContentHandler) Delete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	if err := h.content.DeleteContent(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Duplicate POST /content/:id/duplicate
func (h *ContentHandler) Duplicate(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	item, err := h.content.DuplicateContent(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// RegisterView POST /public/content/:id/view
func (h *ContentHandler) RegisterView(c *gin.Context) {
	id, ok := common.PathID(c, "id")
	if !ok {
		return
	}

	views, err := h.content.IncrementViews(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"view_count": views})
}

// ListBlocks GET /content/:id/blocks
func (h *ContentHandler) ListBlocks(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	blocks, err := h.content.ListBlocks(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, blocks)
}

// AddBlock POST /content/:id/blocks
func (h *ContentHandler) AddBlock(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.BlockRequest
	if !common.Bind(c, &req) {
		return
	}

	block, err := h.content.AddBlock(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// UpdateBlock PUT /content/:id/blocks/:blockId
func (h *ContentHandler) UpdateBlock(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	blockID, ok := common.PathID(c, "blockId")
	if !ok {
		return
	}
	var req dto.BlockRequest
	if !common.Bind(c, &req) {
		return
	}

	block, err := h.content.UpdateBlock(c.Request.Context(), userID, id, blockID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, block)
}

// DeleteBlock DELETE /content/:id/blocks/:blockId
func (h *ContentHandler) DeleteBlock(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	blockID, ok := common.PathID(c, "blockId")
	if !ok {
		return
	}

	if err := h.content.DeleteBlock(c.Request.Context(), userID, id, blockID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ReorderBlocks PUT /content/:id/blocks/order
func (h *ContentHandler) ReorderBlocks(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.BlockOrderRequest
	if !common.Bind(c, &req) {
		return
	}

	blocks, err := h.content.ReorderBlocks(c.Request.Context(), userID, id, req.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, blocks)
}

// ListVersions GET /content/:id/versions
func (h *ContentHandler) ListVersions(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	versions, err := h.content.ListVersions(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, versions)
}

// RestoreVersion POST /content/:id/versions/:version/restore
func (h *ContentHandler) RestoreVersion(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		response.BadRequest(c, "неверный номер версии")
		return
	}

	item, err := h.content.RestoreVersion(c.Request.Context(), userID, id, version)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}
