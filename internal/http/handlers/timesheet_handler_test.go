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

func TestTimesheetHandler_Weekly_InvalidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &TimesheetHandler{timesheets: nil}
	r.GET("/timesheets/weekly", handler.Weekly)

	req, _ := http.NewRequest("GET", "/timesheets/weekly?week_start=01.03.2026", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimesheetHandler_AddEntry_MissingHours(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &TimesheetHandler{timesheets: nil}
	r.POST("/timesheets/:id/entries", handler.AddEntry)

	req, _ := http.NewRequest("POST", "/timesheets/"+uuid.NewString()+"/entries", strings.NewReader(`{"description":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimesheetHandler_Approve_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TimesheetHandler{timesheets: nil}
	r.POST("/timesheets/:id/approve", handler.Approve)

	req, _ := http.NewRequest("POST", "/timesheets/"+uuid.NewString()+"/approve", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
