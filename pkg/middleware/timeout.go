package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vambora/dispatch/pkg/logger"
)

// RequestTimeout creates a middleware that bounds handler execution time.
// If the timeout expires, it returns a 504 Gateway Timeout response.
//
// WebSocket upgrade requests bypass the timeout entirely: those
// connections are long-lived and the timeout wrapper buffers the
// response writer, which breaks the connection hijack.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	timedOut := timeout.New(
		timeout.WithTimeout(d),
		timeout.WithHandler(func(c *gin.Context) {
			c.Next()
		}),
		timeout.WithResponse(func(c *gin.Context) {
			c.Header("X-Timeout", "true")
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error":   "Request timeout",
				"message": "The request took too long to process",
			})

			logger.WithContext(c.Request.Context()).Warn("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Duration("timeout", d),
			)
		}),
	)

	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}
		timedOut(c)
	}
}
