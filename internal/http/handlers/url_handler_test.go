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

func TestURLHandler_Create_InvalidURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &URLHandler{urls: nil}
	r.POST("/urls", handler.Create)

	req, _ := http.NewRequest("POST", "/urls", strings.NewReader(`{"original_url":"not a url"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestURLHandler_AddRedirect_UnknownCondition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &URLHandler{urls: nil}
	r.POST("/urls/:id/redirects", handler.AddRedirect)

	body := `{"condition_type":"language","condition_value":"de","target_url":"https://example.com"}`
	req, _ := http.NewRequest("POST", "/urls/"+uuid.NewString()+"/redirects", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCountryHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/r/abc", nil)
	c.Request.Header.Set("CF-IPCountry", "XX")
	c.Request.Header.Set("X-Country-Code", "DE")

	assert.Equal(t, "DE", countryHeader(c))
}
