package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "wav/internal/errors"
)

// PipelineAuthMiddleware creates a Gin middleware that validates the X-API-Key
// header against the configured pipeline API key. It guards the endpoints an
// external scheduler calls, such as the daily stats run.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidPipelineAPIKey)
			return
		}
		c.Next()
	}
}
