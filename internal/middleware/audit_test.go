package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

type auditWriterStub struct {
	logs []models.AuditLog
}

func (a *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, *log)
	return nil
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &auditWriterStub{}
	router := gin.New()
	router.POST("/students/import", withClaims(models.RoleAdmin), Audit(writer, nil, models.AuditActionStudentImport, "students"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/students/fail", Audit(writer, nil, models.AuditActionStudentImport, "students"), func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/students/import", nil))
	require.Len(t, writer.logs, 1)
	log := writer.logs[0]
	assert.Equal(t, models.AuditActionStudentImport, log.Action)
	assert.Equal(t, "students", log.Resource)
	require.NotNil(t, log.UserID)
	assert.Equal(t, "u1", *log.UserID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(log.NewValues, &body))
	assert.Equal(t, "/students/import", body["path"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/students/fail", nil))
	assert.Len(t, writer.logs, 1)
}

type tokenValidatorStub struct{}

func (tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}, nil
}

func TestJWTAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:id", JWT(tokenValidatorStub{}), RequireRolesOrSelf(models.RoleAdmin), func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.UserID)
	})
	router.GET("/admin", JWT(tokenValidatorStub{}), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/users/u1", "", http.StatusUnauthorized},
		{"malformed header", "/users/u1", "Token good", http.StatusUnauthorized},
		{"bad token", "/users/u1", "Bearer nope", http.StatusUnauthorized},
		{"self", "/users/u1", "Bearer good", http.StatusOK},
		{"other user", "/users/u2", "Bearer good", http.StatusForbidden},
		{"admin only", "/admin", "Bearer good", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestOptionalJWTLeavesAnonymousRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", OptionalJWT(tokenValidatorStub{}), func(c *gin.Context) {
		_, ok := ClaimsFromContext(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	router.ServeHTTP(rec, req)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	router.ServeHTTP(rec, req)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String())
}
