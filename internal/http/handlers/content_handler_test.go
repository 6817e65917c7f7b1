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

func TestContentHandler_List_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ContentHandler{content: nil}
	r.GET("/content", handler.List)

	req, _ := http.NewRequest("GET", "/content", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContentHandler_Create_MissingTitle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &ContentHandler{content: nil}
	r.POST("/content", handler.Create)

	req, _ := http.NewRequest("POST", "/content", strings.NewReader(`{"body":"текст"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContentHandler_RestoreVersion_BadVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &ContentHandler{content: nil}
	r.POST("/content/:id/versions/:version/restore", handler.RestoreVersion)

	req, _ := http.NewRequest("POST", "/content/"+uuid.NewString()+"/versions/zero/restore", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "неверный номер версии")
}

func TestContentHandler_UpdateBlock_InvalidBlockID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &ContentHandler{content: nil}
	r.PUT("/content/:id/blocks/:blockId", handler.UpdateBlock)

	req, _ := http.NewRequest("PUT", "/content/"+uuid.NewString()+"/blocks/nope", strings.NewReader(`{"type":"text"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContentHandler_ReorderBlocks_MissingIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &ContentHandler{content: nil}
	r.PUT("/content/:id/blocks/order", handler.ReorderBlocks)

	req, _ := http.NewRequest("PUT", "/content/"+uuid.NewString()+"/blocks/order", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
