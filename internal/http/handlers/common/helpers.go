package common

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/kazi-backend/internal/http/middleware"
	"github.com/ignatzorin/kazi-backend/internal/http/response"
	"github.com/ignatzorin/kazi-backend/internal/models"
)

var (
	// ErrUserNotFound пользователь не найден в контексте запроса.
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID неверный UUID в параметре.
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentUserID извлекает ID пользователя из gin контекста.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, ErrUserNotFound
	}

	return userID, nil
}

// CurrentUserRole извлекает роль пользователя из gin контекста.
func CurrentUserRole(c *gin.Context) string {
	role, _ := c.Get(middleware.ContextRoleKey)
	s, _ := role.(string)
	return s
}

// IsAdmin сообщает, выполнен ли запрос администратором.
func IsAdmin(c *gin.Context) bool {
	role := CurrentUserRole(c)
	return role == models.RoleAdmin || role == models.RoleServiceRole
}

// RequireUser возвращает ID пользователя или отвечает 401.
func RequireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, err := CurrentUserID(c)
	if err != nil {
		response.Unauthorized(c, "требуется авторизация")
		return uuid.Nil, false
	}
	return userID, true
}

// ParseUUIDParam разбирает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}
	return parsed, nil
}

// PathID разбирает UUID параметра или отвечает 400.
func PathID(c *gin.Context, paramName string) (uuid.UUID, bool) {
	id, err := ParseUUIDParam(c, paramName)
	if err != nil {
		response.BadRequest(c, "неверный "+paramName)
		return uuid.Nil, false
	}
	return id, true
}

// Bind разбирает JSON тело или отвечает 400.
func Bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "ошибка валидации запроса: "+err.Error())
		return false
	}
	return true
}

// ParseIntQuery безопасно читает целый query параметр.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// ParseBoolQuery читает необязательный bool параметр.
func ParseBoolQuery(c *gin.Context, key string) *bool {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

// GetPagination извлекает limit и offset с дефолтами.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}

// UserAndID возвращает пользователя и UUID из параметра :id.
func UserAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := RequireUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := PathID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}
