package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/models"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
	ContextAPIKeyKey = "apiKey"

	apiKeyHeader = "X-API-Key"
)

// AccessTokens разбирает JWT access токены.
type AccessTokens interface {
	ParseAccess(token string) (uuid.UUID, string, error)
}

// KeyAuthenticator проверяет ключи API.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, key string) (*models.APIKey, error)
}

// AuthMiddleware принимает Bearer токен или заголовок X-API-Key.
// keys может быть nil, тогда доступ только по токену.
func AuthMiddleware(tokens AccessTokens, keys KeyAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(apiKeyHeader); raw != "" && keys != nil {
			key, err := keys.Authenticate(c.Request.Context(), raw)
			if err != nil {
				response.Error(c, err)
				return
			}
			c.Set(ContextUserIDKey, key.UserID)
			c.Set(ContextRoleKey, models.RoleAuthenticated)
			c.Set(ContextAPIKeyKey, key)
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			return
		}

		userID, role, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil || userID == uuid.Nil {
			response.Unauthorized(c, "токен невалиден")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// OptionalAuth добавляет пользователя в контекст, если передан валидный
// Bearer токен, и пропускает запрос без ошибки в остальных случаях.
func OptionalAuth(tokens AccessTokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			userID, role, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
			if err == nil && userID != uuid.Nil {
				c.Set(ContextUserIDKey, userID)
				c.Set(ContextRoleKey, role)
			}
		}
		c.Next()
	}
}

// RequireScope проверяет права ключа API на ресурс. GET и HEAD требуют
// read, остальные методы write. Запросы по токену пропускаются.
func RequireScope(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := c.Get(ContextAPIKeyKey)
		if !ok {
			c.Next()
			return
		}
		key := raw.(*models.APIKey)

		access := "write"
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			access = "read"
		}
		if !key.HasScope(access) && !key.HasScope(resource+":"+access) {
			response.Forbidden(c, "у ключа нет права "+resource+":"+access)
			return
		}
		c.Next()
	}
}

// RequireAdmin пропускает только администраторов и service_role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRoleKey)
		if role != models.RoleAdmin && role != models.RoleServiceRole {
			response.Forbidden(c, "требуются права администратора")
			return
		}
		c.Next()
	}
}
