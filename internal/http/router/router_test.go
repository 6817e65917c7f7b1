package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/kazi-backend/internal/config"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers"
	"github.com/ignatzorin/kazi-backend/internal/http/middleware"
	"github.com/ignatzorin/kazi-backend/internal/metrics"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenManager("router-test-secret-router-test-secret", time.Hour)
	m := metrics.New()

	cfg := &config.Config{Env: "test", AllowedOrigins: []string{"http://localhost:3000"}}
	h := Handlers{
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"database": func(context.Context) error { return nil },
		}),
	}
	return SetupRouter(cfg, h, Options{
		Auth:         middleware.AuthMiddleware(tokens, nil),
		OptionalAuth: middleware.OptionalAuth(tokens),
		Observer:     m,
		Metrics:      m.Handler(),
	})
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `kazi_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/api/content", "/api/urls", "/api/audio/projects", "/api/system/status", "/api/api-keys"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
