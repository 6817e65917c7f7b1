package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/kazi-backend/internal/models"
	"github.com/ignatzorin/kazi-backend/internal/pkg/apperror"
	"github.com/ignatzorin/kazi-backend/internal/service"
)

type stubKeys map[string]*models.APIKey

func (s stubKeys) Authenticate(_ context.Context, key string) (*models.APIKey, error) {
	if k, ok := s[key]; ok {
		return k, nil
	}
	return nil, apperror.ErrInvalidKey
}

func newAuthRouter(keys KeyAuthenticator, extra ...gin.HandlerFunc) (*gin.Engine, *service.TokenManager) {
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenManager("test-secret-test-secret-test-secret", time.Hour)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(tokens, keys)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRoleKey))
	})
	r.GET("/me", handlers...)
	r.POST("/me", handlers...)
	return r, tokens
}

func TestAuthMiddleware_Bearer(t *testing.T) {
	r, tokens := newAuthRouter(nil)
	token, _, err := tokens.Issue(uuid.New(), models.RoleAdmin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleAdmin, w.Body.String())
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	r, _ := newAuthRouter(stubKeys{})

	for name, set := range map[string]func(*http.Request){
		"no header":   func(*http.Request) {},
		"bad token":   func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") },
		"unknown key": func(req *http.Request) { req.Header.Set("X-API-Key", "kz_abcdefgh_x") },
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			set(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireScope(t *testing.T) {
	readOnly := &models.APIKey{UserID: uuid.New(), Scopes: []string{"urls:read"}}
	r, _ := newAuthRouter(stubKeys{"ro": readOnly}, RequireScope("urls"))

	get := httptest.NewRequest(http.MethodGet, "/me", nil)
	get.Header.Set("X-API-Key", "ro")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, get)
	assert.Equal(t, http.StatusOK, w.Code)

	post := httptest.NewRequest(http.MethodPost, "/me", nil)
	post.Header.Set("X-API-Key", "ro")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, post)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	r, tokens := newAuthRouter(nil, RequireAdmin())
	token, _, err := tokens.Issue(uuid.New(), models.RoleAuthenticated)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := NewRateStore(nil)
	require.NoError(t, err)
	r := gin.New()
	r.Use(RateLimitMiddleware(store, 2, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.kazi.dev"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.kazi.dev")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.kazi.dev", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUUIDValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/items/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

type recordedHTTP struct {
	route, status string
}

func (r *recordedHTTP) ObserveHTTP(_, route, status string, _ time.Duration) {
	r.route, r.status = route, status
}

func TestRequestLogger_ObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordedHTTP{}
	r := gin.New()
	r.Use(RequestLogger(obs))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
	assert.Equal(t, "/items/:id", obs.route)
	assert.Equal(t, "418", obs.status)
}

func TestOptionalAuth_AnonymousPasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenManager("test-secret-test-secret-test-secret", time.Hour)
	r := gin.New()
	r.GET("/plans", OptionalAuth(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, "role=%s", c.GetString(ContextRoleKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plans", nil))
	assert.Equal(t, "role=", w.Body.String())

	token, _, err := tokens.Issue(uuid.New(), models.RoleAdmin)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "role=admin", w.Body.String())
}
