package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/http/response"
)

// ErrorHandler отвечает на ошибки, добавленные через c.Error, если
// обработчик сам не записал ответ.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}

// Recovery переводит панику обработчика в 500 с общим конвертом.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		response.Error(c, fmt.Errorf("panic: %v", recovered))
	})
}
