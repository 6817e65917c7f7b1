package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTutorialHandler_CompleteStep_InvalidStepID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &TutorialHandler{tutorials: nil}
	r.POST("/tutorials/:id/steps/:stepId/complete", handler.CompleteStep)

	req, _ := http.NewRequest("POST", "/tutorials/"+uuid.NewString()+"/steps/nope/complete", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTutorialHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TutorialHandler{tutorials: nil}
	r.POST("/tutorials", handler.Create)

	req, _ := http.NewRequest("POST", "/tutorials", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
