package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listUsers []models.User
	listCount int
	listErr   error
	auditLogs []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if m.listUsers != nil {
		return m.listUsers, m.listCount, nil
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		out := *user
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	out := *user
	m.users[user.ID] = &out
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	out := *user
	m.users[user.ID] = &out
	return nil
}

func (m *mockUserRepo) UpdateAccess(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	out := *user
	m.users[user.ID] = &out
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type classNamesStub map[string]bool

func (c classNamesStub) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	return c[name], nil
}

func newUserServiceFixture(users map[string]*models.User) (*UserService, *mockUserRepo) {
	repo := &mockUserRepo{users: users}
	classes := classNamesStub{"X IPA 1": true, "X IPA 2": true}
	return NewUserService(repo, classes, repo, validator.New(), zap.NewNop()), repo
}

func TestUserServiceList(t *testing.T) {
	svc, _ := newUserServiceFixture(nil)
	svc.repo.(*mockUserRepo).listUsers = []models.User{{ID: "1", Email: "a@example.com"}}
	svc.repo.(*mockUserRepo).listCount = 1

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestUserServiceCreate(t *testing.T) {
	svc, repo := newUserServiceFixture(map[string]*models.User{})

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email:          "USER@EXAMPLE.COM",
		FullName:       "User",
		Password:       "secret1",
		Role:           models.RoleTeacher,
		Active:         true,
		AllowedClasses: []string{"X IPA 2", " X IPA 1", "X IPA 2"},
	}, "actor", dto.AuditMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, []string{"X IPA 1", "X IPA 2"}, []string(user.AllowedClasses))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, "10.0.0.1", repo.auditLogs[0].IPAddress)

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{Email: "user@example.com", FullName: "Dup", Password: "secret1", Role: models.RoleGuest}, "actor", dto.AuditMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{Email: "x@example.com", FullName: "X", Password: "secret1", Role: "STUDENT"}, "actor", dto.AuditMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceUpdate(t *testing.T) {
	svc, repo := newUserServiceFixture(map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleTeacher, Active: true}})
	active := false

	user, err := svc.Update(context.Background(), "1", dto.UpdateUserRequest{FullName: "New", Active: &active}, "actor", dto.AuditMeta{})
	require.NoError(t, err)
	assert.Equal(t, "New", user.FullName)
	assert.False(t, user.Active)
	assert.NotEmpty(t, repo.auditLogs)

	_, err = svc.Update(context.Background(), "1", dto.UpdateUserRequest{FullName: "Self", Active: &active}, "1", dto.AuditMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceUpdateAccess(t *testing.T) {
	svc, repo := newUserServiceFixture(map[string]*models.User{
		"admin":   {ID: "admin", Role: models.RoleAdmin, Active: true},
		"teacher": {ID: "teacher", Role: models.RoleTeacher, Active: true},
	})

	user, err := svc.UpdateAccess(context.Background(), "teacher", dto.UpdateUserAccessRequest{
		Role:           models.RoleTeacher,
		IsReadOnly:     true,
		AllowedClasses: []string{"X IPA 1"},
	}, "admin", dto.AuditMeta{})
	require.NoError(t, err)
	assert.True(t, user.IsReadOnly)
	assert.Equal(t, []string{"X IPA 1"}, []string(repo.users["teacher"].AllowedClasses))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserAccess, repo.auditLogs[0].Action)
	assert.Contains(t, string(repo.auditLogs[0].NewValues), `"is_read_only":true`)

	_, err = svc.UpdateAccess(context.Background(), "teacher", dto.UpdateUserAccessRequest{Role: models.RoleTeacher, AllowedClasses: []string{"XII Unknown"}}, "admin", dto.AuditMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateAccess(context.Background(), "admin", dto.UpdateUserAccessRequest{Role: models.RoleTeacher}, "admin", dto.AuditMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateAccess(context.Background(), "ghost", dto.UpdateUserAccessRequest{Role: models.RoleGuest}, "admin", dto.AuditMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceDelete(t *testing.T) {
	svc, repo := newUserServiceFixture(map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleTeacher, Active: true}})

	require.NoError(t, svc.Delete(context.Background(), "1", "actor", dto.AuditMeta{}))
	assert.False(t, repo.users["1"].Active)
	assert.NotEmpty(t, repo.auditLogs)

	err := svc.Delete(context.Background(), "actor", "actor", dto.AuditMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
