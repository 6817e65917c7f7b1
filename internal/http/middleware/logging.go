package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/kazi-backend/internal/logger"
)

// HTTPObserver принимает длительность и статус запросов.
type HTTPObserver interface {
	ObserveHTTP(method, route, status string, d time.Duration)
}

// RequestLogger пишет строку лога на каждый запрос и отдаёт метрики.
// observer может быть nil.
func RequestLogger(observer HTTPObserver) gin.HandlerFunc {
	log := logger.WithComponent("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if observer != nil {
			observer.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), elapsed)
		}

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"route":    route,
			"status":   status,
			"duration": elapsed.String(),
			"ip":       c.ClientIP(),
		})
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Debug("request")
		}
	}
}
