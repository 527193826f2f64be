package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vambora/dispatch/pkg/metrics"
)

// Metrics records request count and latency for every matched route
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
