package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/permission"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

// PermissionHandler reports the caller's capabilities for an arbitrary scope
// so clients can render controls disabled up front.
type PermissionHandler struct {
	resolver middleware.PermissionResolver
}

// NewPermissionHandler constructs a permission handler.
func NewPermissionHandler(resolver middleware.PermissionResolver) *PermissionHandler {
	return &PermissionHandler{resolver: resolver}
}

// Me godoc
// @Summary Resolve my permissions
// @Description Resolves edit capabilities for the given scope options
// @Tags Permissions
// @Produce json
// @Param allowedRoles query string false "Comma separated roles, default ADMIN"
// @Param requiresAdmin query bool false "Require the admin role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/permissions [get]
func (h *PermissionHandler) Me(c *gin.Context) {
	opts, err := permissionOptions(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(c)
	caps, err := h.resolver.Resolve(c.Request.Context(), claims, opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, caps, nil)
}

func permissionOptions(c *gin.Context) (permission.Options, error) {
	var opts permission.Options
	if raw := strings.TrimSpace(c.Query("allowedRoles")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			role := models.UserRole(strings.ToUpper(strings.TrimSpace(part)))
			if role == "" {
				continue
			}
			if !role.Valid() {
				return opts, appErrors.Clone(appErrors.ErrValidation, "unknown role "+string(role))
			}
			opts.AllowedRoles = append(opts.AllowedRoles, role)
		}
	}
	if raw := strings.TrimSpace(c.Query("requiresAdmin")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, appErrors.Clone(appErrors.ErrValidation, "requiresAdmin must be a boolean")
		}
		opts.RequiresAdmin = v
	}
	return opts, nil
}
