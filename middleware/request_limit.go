package middleware

import (
	"net/http"

	"humana-api/utils"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimit rejects bodies above maxSize. Declared lengths are
// checked up front; chunked bodies are capped while reading. A
// non-positive maxSize disables the check.
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxSize {
			utils.RespondWithAppError(c, &utils.AppError{
				Kind:    utils.KindValidation,
				Status:  http.StatusRequestEntityTooLarge,
				Code:    "request_too_large",
				Message: "Request body exceeds maximum size",
				Details: gin.H{
					"max_size":    maxSize,
					"received":    c.Request.ContentLength,
					"max_size_mb": maxSize / (1024 * 1024),
				},
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
