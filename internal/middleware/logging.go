package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"versioned-notes/internal/logger"
	"versioned-notes/internal/metrics"
)

// AccessLog writes one line per request and feeds the request metrics.
func AccessLog(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.ObserveRequest(c.Request.Method, route, strconv.Itoa(status), elapsed.Seconds())

		fields := []zap.Field{
			zap.String(logger.FieldMethod, c.Request.Method),
			zap.String(logger.FieldPath, c.Request.URL.Path),
			zap.Int(logger.FieldStatus, status),
			zap.Duration(logger.FieldDuration, elapsed),
			zap.String(logger.FieldRequestIP, c.ClientIP()),
		}
		if uid, ok := c.Get("user_id"); ok {
			fields = append(fields, zap.Any(logger.FieldUID, uid))
		}
		log.Info("request", fields...)
	}
}
