package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// multipartOverhead covers form fields and part headers around the file itself.
const multipartOverhead = 1 << 20

// LimitUploadBody caps the request body at maxFile plus multipart overhead, so
// oversized uploads fail while parsing instead of being spooled to disk first.
// A non-positive maxFile leaves the body untouched.
func LimitUploadBody(maxFile int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxFile > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFile+multipartOverhead)
		}
		c.Next()
	}
}
