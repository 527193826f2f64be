package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("generates a new ID when none provided", func(t *testing.T) {
		router := gin.New()
		router.Use(CorrelationID())

		var captured string
		router.GET("/test", func(c *gin.Context) {
			captured = GetCorrelationID(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.NotEmpty(t, captured)
		_, err := uuid.Parse(captured)
		assert.NoError(t, err)
		assert.Equal(t, captured, w.Header().Get(CorrelationIDHeader))
	})

	t.Run("preserves a valid provided ID", func(t *testing.T) {
		router := gin.New()
		router.Use(CorrelationID())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		provided := "550e8400-e29b-41d4-a716-446655440000"
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationIDHeader, provided)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, provided, w.Header().Get(CorrelationIDHeader))
	})

	t.Run("replaces an invalid provided ID", func(t *testing.T) {
		router := gin.New()
		router.Use(CorrelationID())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationIDHeader, "definitely-not-a-uuid")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		generated := w.Header().Get(CorrelationIDHeader)
		assert.NotEqual(t, "definitely-not-a-uuid", generated)
		_, err := uuid.Parse(generated)
		assert.NoError(t, err)
	})
}
