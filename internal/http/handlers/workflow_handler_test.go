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

func TestWorkflowHandler_Create_MissingName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &WorkflowHandler{workflows: nil}
	r.POST("/workflows", handler.Create)

	req, _ := http.NewRequest("POST", "/workflows", strings.NewReader(`{"trigger_type":"manual"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowHandler_SetActions_MissingType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &WorkflowHandler{workflows: nil}
	r.PUT("/workflows/:id/actions", handler.SetActions)

	body := `{"actions":[{"config":{"message":"hi"}}]}`
	req, _ := http.NewRequest("PUT", "/workflows/"+uuid.NewString()+"/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowHandler_UpdateSchedule_BadScheduleID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &WorkflowHandler{workflows: nil}
	r.PUT("/workflows/:id/schedules/:scheduleId", handler.UpdateSchedule)

	req, _ := http.NewRequest("PUT", "/workflows/"+uuid.NewString()+"/schedules/nope", strings.NewReader(`{"cron_expression":"* * * * *"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowHandler_Execute_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WorkflowHandler{workflows: nil}
	r.POST("/workflows/:id/execute", handler.Execute)

	req, _ := http.NewRequest("POST", "/workflows/"+uuid.NewString()+"/execute", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
