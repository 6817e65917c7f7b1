package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type AudioHandler struct {
	audio *service.AudioService
}

func NewAudioHandler(audio *service.AudioService) *AudioHandler {
	return &AudioHandler{audio: audio}
}

// CreateProject POST /audio/projects
func (h *AudioHandler) CreateProject(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.AudioProjectRequest
	if !common.Bind(c, &req) {
		return
	}
	p, err := h.audio.CreateProject(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// ListProjects GET /audio/projects
func (h *AudioHandler) ListProjects(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)
	items, total, err := h.audio.ListProjects(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, total, limit, offset)
}

// GetProject GET /audio/projects/:id
func (h *AudioHandler) GetProject(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	p, err := h.audio.GetProject(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// UpdateProject PUT /audio/projects/:id
func (h *AudioHandler) UpdateProject(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.AudioProjectRequest
	if !common.Bind(c, &req) {
		return
	}
	p, err := h.audio.UpdateProject(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// DeleteProject DELETE /audio/projects/:id
func (h *AudioHandler) DeleteProject(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	if err := h.audio.DeleteProject(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddTrack POST /audio/projects/:id/tracks
func (h *AudioHandler) AddTrack(c *gin.Context) {
	userID, projectID, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.AudioTrackRequest
	if !common.Bind(c, &req) {
		return
	}
	t, err := h.audio.AddTrack(c.Request.Context(), userID, projectID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, t)
}

// UpdateTrack PATCH /audio/projects/:id/tracks/:trackId
func (h *AudioHandler) UpdateTrack(c *gin.Context) {
	userID, projectID, ok := common.UserAndID(c)
	if !ok {
		return
	}
	trackID, ok := common.PathID(c, "trackId")
	if !ok {
		return
	}
	var req dto.AudioTrackRequest
	if !common.Bind(c, &req) {
		return
	}
	t, err := h.audio.UpdateTrack(c.Request.Context(), userID, projectID, trackID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, t)
}

// DeleteTrack DELETE /audio/projects/:id/tracks/:trackId
func (h *AudioHandler) DeleteTrack(c *gin.Context) {
	userID, projectID, ok := common.UserAndID(c)
	if !ok {
		return
	}
	trackID, ok := common.PathID(c, "trackId")
	if !ok {
		return
	}
	if err := h.audio.DeleteTrack(c.Request.Context(), userID, projectID, trackID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Mixdown GET /audio/projects/:id/mixdown
func (h *AudioHandler) Mixdown(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	plan, err := h.audio.Mixdown(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plan)
}
