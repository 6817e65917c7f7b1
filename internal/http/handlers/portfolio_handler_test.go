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

func TestPortfolioHandler_Create_BadProjectURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &PortfolioHandler{portfolio: nil}
	r.POST("/portfolio", handler.Create)

	req, _ := http.NewRequest("POST", "/portfolio", strings.NewReader(`{"title":"Сайт","project_url":"not-a-url"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPortfolioHandler_ListPublic_BadUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PortfolioHandler{portfolio: nil}
	r.GET("/public/portfolio", handler.ListPublic)

	req, _ := http.NewRequest("GET", "/public/portfolio?user_id=abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPortfolioHandler_Reorder_EmptyList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &PortfolioHandler{portfolio: nil}
	r.PUT("/portfolio/order", handler.Reorder)

	req, _ := http.NewRequest("PUT", "/portfolio/order", strings.NewReader(`{"ids":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
