package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

func subject(role models.UserRole) *Subject {
	return &Subject{ID: "u1", Role: role}
}

func assertRestricted(t *testing.T, caps Capabilities) {
	t.Helper()
	assert.False(t, caps.CanEdit)
	assert.False(t, caps.CanAdd)
	assert.False(t, caps.CanDelete)
	assert.True(t, caps.IsReadOnly)
}

func TestResolveFailsClosedWhenUnauthenticated(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleGuest} {
		for _, locked := range []bool{true, false} {
			caps := Resolve(Input{Authenticated: false, User: subject(role), DataEntryLocked: locked}, Options{AllowedRoles: []models.UserRole{role}})
			assertRestricted(t, caps)
		}
	}
	assertRestricted(t, Resolve(Input{Authenticated: true}, Options{}))
}

func TestResolveAdminBypassesLock(t *testing.T) {
	caps := Resolve(Input{Authenticated: true, User: subject(models.RoleAdmin), DataEntryLocked: true}, Options{})
	assert.True(t, caps.CanEdit)
	assert.True(t, caps.CanAdd)
	assert.True(t, caps.CanDelete)
	assert.False(t, caps.IsReadOnly)
	assert.Equal(t, models.RoleAdmin, caps.UserRole)
}

func TestResolveLockBlocksNonAdmin(t *testing.T) {
	opts := Options{AllowedRoles: []models.UserRole{models.RoleAdmin, models.RoleTeacher}}

	locked := Resolve(Input{Authenticated: true, User: subject(models.RoleTeacher), DataEntryLocked: true}, opts)
	assertRestricted(t, locked)
	assert.Equal(t, models.RoleTeacher, locked.UserRole)

	unlocked := Resolve(Input{Authenticated: true, User: subject(models.RoleTeacher)}, opts)
	assert.True(t, unlocked.CanEdit)
}

func TestResolvePersonalReadOnlyOverride(t *testing.T) {
	for _, role := range []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleGuest} {
		user := subject(role)
		user.IsReadOnly = true
		caps := Resolve(Input{Authenticated: true, User: user}, Options{AllowedRoles: []models.UserRole{role}})
		assertRestricted(t, caps)
	}
}

func TestResolveRequiresAdmin(t *testing.T) {
	opts := Options{AllowedRoles: []models.UserRole{models.RoleTeacher}, RequiresAdmin: true}

	teacher := Resolve(Input{Authenticated: true, User: subject(models.RoleTeacher)}, opts)
	assertRestricted(t, teacher)

	admin := Resolve(Input{Authenticated: true, User: subject(models.RoleAdmin)}, opts)
	assert.True(t, admin.CanEdit)
}

func TestResolveDefaultAllowedRolesIsAdminOnly(t *testing.T) {
	assertRestricted(t, Resolve(Input{Authenticated: true, User: subject(models.RoleTeacher)}, Options{}))
	assertRestricted(t, Resolve(Input{Authenticated: true, User: subject(models.RoleGuest)}, Options{}))
	assert.True(t, Resolve(Input{Authenticated: true, User: subject(models.RoleAdmin)}, Options{}).CanEdit)
}

func TestCapabilitiesAreUndifferentiated(t *testing.T) {
	inputs := []Input{
		{Authenticated: true, User: subject(models.RoleAdmin)},
		{Authenticated: true, User: subject(models.RoleTeacher)},
		{Authenticated: true, User: subject(models.RoleGuest), DataEntryLocked: true},
		{},
	}
	for _, in := range inputs {
		caps := Resolve(in, Options{AllowedRoles: []models.UserRole{models.RoleTeacher}})
		assert.Equal(t, caps.CanEdit, caps.CanAdd)
		assert.Equal(t, caps.CanEdit, caps.CanDelete)
		assert.Equal(t, !caps.CanEdit, caps.IsReadOnly)
	}
}

func TestAllows(t *testing.T) {
	caps := Resolve(Input{Authenticated: true, User: subject(models.RoleAdmin)}, Options{})
	assert.True(t, caps.Allows(CapabilityEdit))
	assert.True(t, caps.Allows(CapabilityAdd))
	assert.True(t, caps.Allows(CapabilityDelete))
	assert.False(t, caps.Allows(Capability("publish")))
	assert.False(t, Restricted().Allows(CapabilityEdit))
}

func TestCanManageClass(t *testing.T) {
	teacher := &Subject{Role: models.RoleTeacher, AllowedClasses: []string{"X-A"}}
	caps := Resolve(Input{Authenticated: true, User: teacher}, Options{AllowedRoles: []models.UserRole{models.RoleTeacher}})
	assert.True(t, caps.CanManageClass("X-A"))
	assert.False(t, caps.CanManageClass("X-B"))

	admin := Resolve(Input{Authenticated: true, User: subject(models.RoleAdmin)}, Options{})
	assert.True(t, admin.CanManageClass("anything"))

	assert.False(t, Restricted().CanManageClass("X-A"))
}

func TestFromContextDefaultsToRestricted(t *testing.T) {
	assertRestricted(t, FromContext(context.Background()))
	assert.Equal(t, models.UserRole(""), FromContext(context.Background()).UserRole)

	caps := Resolve(Input{Authenticated: true, User: subject(models.RoleAdmin)}, Options{})
	ctx := NewContext(context.Background(), caps)
	assert.True(t, FromContext(ctx).CanEdit)

	inner := NewContext(ctx, Restricted())
	assert.False(t, FromContext(inner).CanEdit)
	assert.True(t, FromContext(ctx).CanEdit)
}
