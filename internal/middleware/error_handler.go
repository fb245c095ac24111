package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apiError "versioned-notes/internal/errors"
	"versioned-notes/internal/logger"
)

func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var apiErr *apiError.APIError

			// if it's our custom APIError
			if !errors.As(err, &apiErr) {
				// If it's a raw error we didn't wrap, treat as Internal
				apiErr = apiError.Internal(err)
			}

			fields := []zap.Field{
				zap.String(logger.FieldMethod, c.Request.Method),
				zap.String(logger.FieldPath, c.Request.URL.Path),
				zap.Int(logger.FieldStatus, apiErr.Status),
				zap.Error(apiErr.Internal),
			}
			if apiErr.Status >= http.StatusInternalServerError {
				log.Error(apiErr.Message, fields...)
			} else {
				log.Info(apiErr.Message, fields...)
			}

			if apiErr.Status == http.StatusConflict {
				c.Header("Retry-After", "1")
			}

			// Respond with JSON
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
		}
	}
}
