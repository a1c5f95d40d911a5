package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/setoff/internal/interfaces/http/dto"
)

// BodyLimit rejects oversized request bodies. Declared lengths are
// refused outright; chunked uploads are cut off by a MaxBytesReader so
// a lying Content-Length cannot get around the cap.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse("REQUEST_TOO_LARGE", "request body exceeds the allowed size"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
