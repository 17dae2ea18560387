package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

// RequireRoles admits only tokens carrying one of the roles. It checks the
// token alone; stored access flags are enforced by PermissionScope.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return requireRoles(roles, false)
}

// RequireRolesOrSelf also admits a caller whose user id matches the :id
// route parameter.
func RequireRolesOrSelf(roles ...models.UserRole) gin.HandlerFunc {
	return requireRoles(roles, true)
}

func requireRoles(roles []models.UserRole, allowSelf bool) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && c.Param("id") != "" && c.Param("id") == claims.UserID {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
