package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"social-service/internal/observability"
)

// routeUnmatched labels requests that hit no route, so probing random paths
// cannot grow the label set.
const routeUnmatched = "unmatched"

// Metrics records count and latency per route template. The event stream is
// long-lived and only counted once it closes.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = routeUnmatched
		}
		observability.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
