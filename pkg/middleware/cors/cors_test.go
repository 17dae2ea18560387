package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(New(origins))
	router.Any("/students", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/students", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	rec := serve([]string{"https://school.example/"}, http.MethodGet, "https://school.example")
	assert.Equal(t, "https://school.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	rec := serve([]string{"https://school.example"}, http.MethodGet, "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	rec := serve(nil, http.MethodOptions, "https://any.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://any.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
