package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/dto"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers/common"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type TeamHandler struct {
	teams *service.TeamService
}

func NewTeamHandler(teams *service.TeamService) *TeamHandler {
	return &TeamHandler{teams: teams}
}

// Create POST /teams
func (h *TeamHandler) Create(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	var req dto.TeamRequest
	if !common.Bind(c, &req) {
		return
	}

	team, err := h.teams.CreateTeam(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, team)
}

// List GET /teams
func (h *TeamHandler) List(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	teams, err := h.teams.ListMyTeams(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, teams)
}

// Get GET /teams/:id
func (h *TeamHandler) Get(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	team, err := h.teams.GetTeam(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, team)
}

// Update PUT /teams/:id
func (h *TeamHandler) Update(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.TeamRequest
	if !common.Bind(c, &req) {
		return
	}

	team, err := h.teams.UpdateTeam(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, team)
}

// Delete DELETE /teams/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	if err := h.teams.DeleteTeam(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Members GET /teams/:id/members
func (h *TeamHandler) Members(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	members, err := h.teams.ListMembers(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// UpdateMemberRole PUT /teams/:id/members/:userId
func (h *TeamHandler) UpdateMemberRole(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	memberID, ok := common.PathID(c, "userId")
	if !ok {
		return
	}
	var req dto.MemberRoleRequest
	if !common.Bind(c, &req) {
		return
	}

	member, err := h.teams.UpdateMemberRole(c.Request.Context(), userID, id, memberID, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

// RemoveMember DELETE /teams/:id/members/:userId
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	memberID, ok := common.PathID(c, "userId")
	if !ok {
		return
	}

	if err := h.teams.RemoveMember(c.Request.Context(), userID, id, memberID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Leave POST /teams/:id/leave
func (h *TeamHandler) Leave(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	if err := h.teams.LeaveTeam(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Invite POST /teams/:id/invitations
func (h *TeamHandler) Invite(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	var req dto.InviteRequest
	if !common.Bind(c, &req) {
		return
	}

	inv, err := h.teams.InviteMember(c.Request.Context(), userID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

// Invitations GET /teams/:id/invitations
func (h *TeamHandler) Invitations(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}

	invitations, err := h.teams.ListInvitations(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, invitations)
}

// RevokeInvitation DELETE /teams/:id/invitations/:invitationId
func (h *TeamHandler) RevokeInvitation(c *gin.Context) {
	userID, id, ok := common.UserAndID(c)
	if !ok {
		return
	}
	invitationID, ok := common.PathID(c, "invitationId")
	if !ok {
		return
	}

	if err := h.teams.RevokeInvitation(c.Request.Context(), userID, id, invitationID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AcceptInvitation POST /invitations/:token/accept
func (h *TeamHandler) AcceptInvitation(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}

	member, err := h.teams.AcceptInvitation(c.Request.Context(), userID, c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}
