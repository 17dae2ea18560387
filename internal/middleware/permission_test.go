package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/permission"
	"github.com/noah-isme/sma-roster-api/internal/service"
)

type resolverStub struct {
	input permission.Input
	err   error
	opts  permission.Options
}

func (r *resolverStub) Resolve(ctx context.Context, claims *models.JWTClaims, opts permission.Options) (permission.Capabilities, error) {
	r.opts = opts
	if r.err != nil {
		return permission.Restricted(), r.err
	}
	if claims == nil {
		return permission.Restricted(), nil
	}
	return permission.Resolve(r.input, opts), nil
}

func subjectInput(role models.UserRole, readOnly bool, classes ...string) permission.Input {
	return permission.Input{
		Authenticated: true,
		User:          &permission.Subject{ID: "u1", Role: role, IsReadOnly: readOnly, AllowedClasses: classes},
	}
}

func withClaims(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: role})
		c.Next()
	}
}

func scopedRouter(resolver PermissionResolver, metrics *service.MetricsService, role models.UserRole, opts permission.Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/students", withClaims(role), PermissionScope(resolver, metrics, opts))
	group.GET("", func(c *gin.Context) {
		caps := permission.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, caps)
	})
	group.POST("", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	group.DELETE("/:id", Guard(permission.CapabilityDelete, nil, metrics), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestPermissionScopeDisablesMutationsWhenReadOnly(t *testing.T) {
	metrics := service.NewMetricsService()
	resolver := &resolverStub{input: subjectInput(models.RoleTeacher, true)}
	router := scopedRouter(resolver, metrics, models.RoleTeacher, permission.Options{AllowedRoles: []models.UserRole{models.RoleAdmin, models.RoleTeacher}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/students", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "READ_ONLY")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var caps map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caps))
	assert.Equal(t, true, caps["is_read_only"])
	assert.Equal(t, "TEACHER", caps["user_role"])

	assert.Equal(t, uint64(1), metrics.Snapshot().PermissionDenials)
}

func TestPermissionScopeAllowsEditors(t *testing.T) {
	resolver := &resolverStub{input: subjectInput(models.RoleTeacher, false, "X IPA 1")}
	opts := permission.Options{AllowedRoles: []models.UserRole{models.RoleAdmin, models.RoleTeacher}}
	router := scopedRouter(resolver, nil, models.RoleTeacher, opts)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/students", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, opts, resolver.opts)
}

func TestPermissionScopeResolverFailure(t *testing.T) {
	resolver := &resolverStub{err: errors.New("db down")}
	router := scopedRouter(resolver, nil, models.RoleAdmin, permission.Options{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGuardDefaultFallbackRendersEmptyForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		// an editor whose scope grants nothing for delete
		c.Set(ContextCapabilitiesKey, permission.Capabilities{CanEdit: true, CanAdd: true})
		c.Next()
	})
	router.DELETE("/students/:id", Guard(permission.CapabilityDelete, nil, nil), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/students/1", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestGuardRunsFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	fallback := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "view only"})
	}
	reached := false
	router.GET("/students/new", Guard(permission.CapabilityAdd, fallback, nil), func(c *gin.Context) {
		reached = true
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/students/new", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "view only")
	assert.False(t, reached)
}

func TestGuardAllowsAdminDelete(t *testing.T) {
	resolver := &resolverStub{input: subjectInput(models.RoleAdmin, false)}
	router := scopedRouter(resolver, nil, models.RoleAdmin, permission.Options{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/students/7", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCapabilitiesFromContextOutsideScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	caps := CapabilitiesFromContext(c)
	assert.False(t, caps.CanEdit)
	assert.True(t, caps.IsReadOnly)
}
