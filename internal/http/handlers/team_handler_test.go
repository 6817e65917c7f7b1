package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTeamHandler_Invite_InvalidEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &TeamHandler{teams: nil}
	r.POST("/teams/:id/invitations", handler.Invite)

	req, _ := http.NewRequest("POST", "/teams/"+uuid.NewString()+"/invitations", strings.NewReader(`{"email":"not-an-email"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTeamHandler_AcceptInvitation_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TeamHandler{teams: nil}
	r.POST("/invitations/:token/accept", handler.AcceptInvitation)

	req, _ := http.NewRequest("POST", "/invitations/abc/accept", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTeamHandler_RemoveMember_InvalidUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &TeamHandler{teams: nil}
	r.DELETE("/teams/:id/members/:userId", handler.RemoveMember)

	req, _ := http.NewRequest("DELETE", "/teams/"+uuid.NewString()+"/members/xyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
