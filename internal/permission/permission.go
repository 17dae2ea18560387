// Package permission derives edit capabilities from the session, the user's
// role and the global data-entry lock.
package permission

import (
	"context"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

// Capability names a single guarded action.
type Capability string

const (
	CapabilityEdit   Capability = "edit"
	CapabilityDelete Capability = "delete"
	CapabilityAdd    Capability = "add"
)

// Subject is the slice of the current user the resolver needs.
type Subject struct {
	ID             string
	Role           models.UserRole
	IsReadOnly     bool
	AllowedClasses []string
}

// Input is the session state a decision is made against.
type Input struct {
	Authenticated   bool
	User            *Subject
	DataEntryLocked bool
}

// Options configure a permission scope.
type Options struct {
	AllowedRoles  []models.UserRole
	RequiresAdmin bool
}

// DefaultAllowedRoles is used when a scope does not name its roles.
var DefaultAllowedRoles = []models.UserRole{models.RoleAdmin}

// Capabilities is the resolved decision for a scope.
type Capabilities struct {
	CanEdit    bool            `json:"can_edit"`
	CanDelete  bool            `json:"can_delete"`
	CanAdd     bool            `json:"can_add"`
	IsReadOnly bool            `json:"is_read_only"`
	UserRole   models.UserRole `json:"user_role"`

	allowedClasses []string
}

// Restricted returns the most restrictive capability set.
func Restricted() Capabilities {
	return Capabilities{IsReadOnly: true}
}

// Resolve computes the capabilities for the input under the given options.
func Resolve(in Input, opts Options) Capabilities {
	if !in.Authenticated || in.User == nil {
		return Restricted()
	}
	user := in.User
	caps := Capabilities{UserRole: user.Role, allowedClasses: user.AllowedClasses}

	canEdit := true
	if user.IsReadOnly {
		canEdit = false
	}

	allowed := opts.AllowedRoles
	if allowed == nil {
		allowed = DefaultAllowedRoles
	}
	isAdmin := user.Role == models.RoleAdmin
	// Admins bypass the lock; everyone else is frozen while it is on.
	roleOK := isAdmin || (!in.DataEntryLocked && hasRole(allowed, user.Role))
	canEdit = canEdit && roleOK

	if opts.RequiresAdmin {
		canEdit = canEdit && isAdmin
	}

	caps.CanEdit = canEdit
	caps.CanAdd = canEdit
	caps.CanDelete = canEdit
	caps.IsReadOnly = !canEdit
	return caps
}

// Allows reports whether the capability is granted.
func (c Capabilities) Allows(capability Capability) bool {
	switch capability {
	case CapabilityEdit:
		return c.CanEdit
	case CapabilityDelete:
		return c.CanDelete
	case CapabilityAdd:
		return c.CanAdd
	default:
		return false
	}
}

// CanManageClass reports whether the user may change records of the named class.
// Admins manage every class; other roles only their allowed classes.
func (c Capabilities) CanManageClass(className string) bool {
	if !c.CanEdit {
		return false
	}
	if c.UserRole == models.RoleAdmin {
		return true
	}
	for _, name := range c.allowedClasses {
		if name == className {
			return true
		}
	}
	return false
}

// AllowedClasses returns a copy of the class names attached to the decision.
func (c Capabilities) AllowedClasses() []string {
	out := make([]string, len(c.allowedClasses))
	copy(out, c.allowedClasses)
	return out
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying the capabilities.
func NewContext(ctx context.Context, caps Capabilities) context.Context {
	return context.WithValue(ctx, contextKey{}, caps)
}

// FromContext returns the capabilities of the nearest enclosing scope, or the
// restricted set when ctx carries none.
func FromContext(ctx context.Context) Capabilities {
	if ctx == nil {
		return Restricted()
	}
	if caps, ok := ctx.Value(contextKey{}).(Capabilities); ok {
		return caps
	}
	return Restricted()
}

func hasRole(roles []models.UserRole, role models.UserRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
