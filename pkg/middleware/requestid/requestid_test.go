package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewarePropagatesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())

	var fromGin, fromCtx string
	router.GET("/ping", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(headerKey, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(headerKey))
	assert.Equal(t, "abc-123", fromGin)
	assert.Equal(t, "abc-123", fromCtx)
}

func TestMiddlewareGeneratesIDWhenMissingOrOversized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, incoming := range []string{"", strings.Repeat("x", maxLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if incoming != "" {
			req.Header.Set(headerKey, incoming)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		_, err := uuid.Parse(rec.Header().Get(headerKey))
		require.NoError(t, err)
	}
}
