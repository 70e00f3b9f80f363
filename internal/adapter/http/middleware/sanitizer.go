package middleware

import (
	"net/http"

	"note-issuance-engine/pkg/apperror"
	"note-issuance-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps request bodies at maxBytes. A declared Content-Length
// over the cap is rejected with RATE_002 before the handler runs; chunked
// bodies are cut off by the reader and fail at binding.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		if req.Body == nil || req.Body == http.NoBody {
			c.Next()
			return
		}
		if req.ContentLength > maxBytes {
			response.Error(c, apperror.ErrPayloadTooLarge(maxBytes))
			c.Abort()
			return
		}
		req.Body = http.MaxBytesReader(c.Writer, req.Body, maxBytes)
		c.Next()
	}
}
