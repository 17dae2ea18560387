package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/permission"
	"github.com/noah-isme/sma-roster-api/internal/service"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

// ContextCapabilitiesKey is the gin context key storing resolved capabilities.
const ContextCapabilitiesKey = "capabilities"

// PermissionResolver resolves the capabilities of an authenticated session.
type PermissionResolver interface {
	Resolve(ctx context.Context, claims *models.JWTClaims, opts permission.Options) (permission.Capabilities, error)
}

// PermissionScope resolves capabilities once per request and hands them to
// every handler in the group, both on the gin context and on the request
// context. Mutating requests are rejected while the scope cannot edit.
func PermissionScope(resolver PermissionResolver, metrics *service.MetricsService, opts permission.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var claims *models.JWTClaims
		if value, ok := c.Get(ContextUserKey); ok {
			claims, _ = value.(*models.JWTClaims)
		}

		caps, err := resolver.Resolve(c.Request.Context(), claims, opts)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextCapabilitiesKey, caps)
		c.Request = c.Request.WithContext(permission.NewContext(c.Request.Context(), caps))

		if isMutating(c.Request.Method) && !caps.CanEdit {
			metrics.RecordPermissionDenied("read_only")
			response.Error(c, appErrors.ErrReadOnly)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Guard lets the request through only when the scope grants capability.
// Denied requests run fallback, or get an empty 403 when fallback is nil.
func Guard(capability permission.Capability, fallback gin.HandlerFunc, metrics *service.MetricsService) gin.HandlerFunc {
	if fallback == nil {
		fallback = response.Forbidden
	}
	return func(c *gin.Context) {
		if CapabilitiesFromContext(c).Allows(capability) {
			c.Next()
			return
		}
		metrics.RecordPermissionDenied(string(capability))
		fallback(c)
		c.Abort()
	}
}

// CapabilitiesFromContext returns the capabilities of the enclosing scope,
// or the restricted set outside any scope.
func CapabilitiesFromContext(c *gin.Context) permission.Capabilities {
	if value, ok := c.Get(ContextCapabilitiesKey); ok {
		if caps, ok := value.(permission.Capabilities); ok {
			return caps
		}
	}
	return permission.FromContext(c.Request.Context())
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
