package handler

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

	"github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/permission"
)

type permissionResolverStub struct {
	input permission.Input
	opts  permission.Options
	err   error
}

func (r *permissionResolverStub) Resolve(ctx context.Context, claims *models.JWTClaims, opts permission.Options) (permission.Capabilities, error) {
	r.opts = opts
	if r.err != nil {
		return permission.Restricted(), r.err
	}
	if claims == nil {
		return permission.Restricted(), nil
	}
	return permission.Resolve(r.input, opts), nil
}

func permissionRequest(h *PermissionHandler, query string, claims *models.JWTClaims) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/me/permissions"+query, nil)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	h.Me(c)
	return rec
}

func TestPermissionHandlerParsesScope(t *testing.T) {
	resolver := &permissionResolverStub{input: permission.Input{
		Authenticated: true,
		User:          &permission.Subject{ID: "t1", Role: models.RoleTeacher},
	}}
	h := NewPermissionHandler(resolver)

	rec := permissionRequest(h, "?allowedRoles=admin,%20TEACHER&requiresAdmin=false", &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.UserRole{models.RoleAdmin, models.RoleTeacher}, resolver.opts.AllowedRoles)

	var caps map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeTestEnvelope(t, rec).Data, &caps))
	assert.Equal(t, true, caps["can_edit"])
	assert.Equal(t, false, caps["is_read_only"])
	assert.Equal(t, "TEACHER", caps["user_role"])
}

func TestPermissionHandlerDefaultsToAdminScope(t *testing.T) {
	resolver := &permissionResolverStub{input: permission.Input{
		Authenticated: true,
		User:          &permission.Subject{ID: "t1", Role: models.RoleTeacher},
	}}
	h := NewPermissionHandler(resolver)

	rec := permissionRequest(h, "", &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, resolver.opts.AllowedRoles)

	var caps map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeTestEnvelope(t, rec).Data, &caps))
	assert.Equal(t, false, caps["can_edit"])
}

func TestPermissionHandlerAnonymousIsRestricted(t *testing.T) {
	h := NewPermissionHandler(&permissionResolverStub{})

	rec := permissionRequest(h, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var caps map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeTestEnvelope(t, rec).Data, &caps))
	assert.Equal(t, true, caps["is_read_only"])
	assert.Equal(t, "", caps["user_role"])
}

func TestPermissionHandlerRejectsBadQuery(t *testing.T) {
	h := NewPermissionHandler(&permissionResolverStub{})

	assert.Equal(t, http.StatusBadRequest, permissionRequest(h, "?allowedRoles=OWNER", nil).Code)
	assert.Equal(t, http.StatusBadRequest, permissionRequest(h, "?requiresAdmin=maybe", nil).Code)

	failing := NewPermissionHandler(&permissionResolverStub{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, permissionRequest(failing, "", &models.JWTClaims{UserID: "u"}).Code)
}
