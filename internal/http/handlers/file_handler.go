package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type FileHandler struct {
	files *service.FileService
}

func NewFileHandler(files *service.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// Upload POST /files (multipart: file, folder)
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "поле file обязательно")
		return
	}
	src, err := header.Open()
	if err != nil {
		response.BadRequest(c, "не удалось открыть файл")
		return
	}
	defer src.Close()

	f, err := h.files.Upload(c.Request.Context(), userID, header.Filename, c.PostForm("folder"), src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, f)
}

// List GET /files?folder=&starred=&trashed=&search=
func (h *FileHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)
	filter := models.FileFilter{
		Folder:  c.Query("folder"),
		Starred: common.ParseBoolQuery(c, "starred"),
		Search:  c.Query("search"),
		Limit:   limit,
		Offset:  offset,
	}
	if trashed := common.ParseBoolQuery(c, "trashed"); trashed != nil {
		filter.Trashed = *trashed
	}

	items, total, err := h.files.List(c.Request.Context(), userID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// Get GET /files/:id
func (h *FileHandler) Get(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	f, err := h.files.Get(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, f)
}

// Download GET /files/:id/download
func (h *FileHandler) Download(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	f, rc, err := h.files.Open(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	disposition := fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(f.Name))
	c.DataFromReader(http.StatusOK, f.Size, f.MimeType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

// Rename PATCH /files/:id/name
func (h *FileHandler) Rename(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.RenameFileRequest
	if !common.Bind(c, &req) {
		return
	}
	f, err := h.files.Rename(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, f)
}

// Move PATCH /files/:id/folder
func (h *FileHandler) Move(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.MoveFileRequest
	if !common.Bind(c, &req) {
		return
	}
	f, err := h.files.Move(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, f)
}

// ToggleStar POST /files/:id/star
func (h *FileHandler) ToggleStar(c *gin.Context) {
	h.simple(c, h.files.ToggleStar)
}

// Trash POST /files/:id/trash
func (h *FileHandler) Trash(c *gin.Context) {
	h.simple(c, h.files.Trash)
}

// Restore POST /files/:id/restore
func (h *FileHandler) Restore(c *gin.Context) {
	h.simple(c, h.files.Restore)
}

// Delete DELETE /files/:id
func (h *FileHandler) Delete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	if err := h.files.DeletePermanently(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// EmptyTrash DELETE /files/trash
func (h *FileHandler) EmptyTrash(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	n, err := h.files.EmptyTrash(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

// Usage GET /files/usage
func (h *FileHandler) Usage(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	usage, err := h.files.StorageUsage(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, usage)
}

// Watermark POST /files/:id/watermark
func (h *FileHandler) Watermark(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.WatermarkRequest
	if !common.Bind(c, &req) {
		return
	}
	f, err := h.files.Watermark(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, f)
}

func (h *FileHandler) simple(c *gin.Context, fn func(ctx context.Context, userID, id uuid.UUID) (*models.File, error)) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	f, err := fn(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, f)
}
