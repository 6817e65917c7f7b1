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

func TestAudioHandler_CreateProject_BPMOutOfRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &AudioHandler{audio: nil}
	r.POST("/audio/projects", handler.CreateProject)

	req, _ := http.NewRequest("POST", "/audio/projects", strings.NewReader(`{"name":"demo","bpm":500}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAudioHandler_AddTrack_PanOutOfRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &AudioHandler{audio: nil}
	r.POST("/audio/projects/:id/tracks", handler.AddTrack)

	body := `{"name":"bass","pan":-1.5}`
	req, _ := http.NewRequest("POST", "/audio/projects/"+uuid.NewString()+"/tracks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAudioHandler_DeleteTrack_BadTrackID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser(uuid.New()))
	handler := &AudioHandler{audio: nil}
	r.DELETE("/audio/projects/:id/tracks/:trackId", handler.DeleteTrack)

	req, _ := http.NewRequest("DELETE", "/audio/projects/"+uuid.NewString()+"/tracks/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAudioHandler_Mixdown_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &AudioHandler{audio: nil}
	r.GET("/audio/projects/:id/mixdown", handler.Mixdown)

	req, _ := http.NewRequest("GET", "/audio/projects/"+uuid.NewString()+"/mixdown", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
