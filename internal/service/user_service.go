package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

const userAuditResource = "users"

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateAccess(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type classNameChecker interface {
	ExistsByName(ctx context.Context, name string, excludeID string) (bool, error)
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	classes   classNameChecker
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, classes classNameChecker, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, classes: classes, audit: audit, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new user together with its access settings.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actorID string, meta dto.AuditMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}

	classes, err := s.normalizeClasses(ctx, req.AllowedClasses)
	if err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:             uuid.NewString(),
		Email:          email,
		FullName:       strings.TrimSpace(req.FullName),
		Role:           req.Role,
		Active:         req.Active,
		IsReadOnly:     req.IsReadOnly,
		AllowedClasses: classes,
		PasswordHash:   string(passwordHash),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.recordAudit(ctx, actorID, models.AuditActionUserCreate, user.ID, nil, accessPayload(user), meta)
	return user, nil
}

// Update modifies profile fields of a user.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actorID string, meta dto.AuditMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldPayload := map[string]interface{}{"full_name": user.FullName, "active": user.Active}

	user.FullName = strings.TrimSpace(req.FullName)
	if req.Active != nil {
		if !*req.Active && id == actorID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot deactivate your own account")
		}
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.recordAudit(ctx, actorID, models.AuditActionUserUpdate, user.ID, oldPayload, map[string]interface{}{"full_name": user.FullName, "active": user.Active}, meta)
	return user, nil
}

// UpdateAccess replaces the role, read-only flag and allowed classes of a
// user. The new access applies from the user's next request.
func (s *UserService) UpdateAccess(ctx context.Context, id string, req dto.UpdateUserAccessRequest, actorID string, meta dto.AuditMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid access payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if id == actorID && user.Role == models.RoleAdmin && (req.Role != models.RoleAdmin || req.IsReadOnly) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot remove your own admin access")
	}

	classes, err := s.normalizeClasses(ctx, req.AllowedClasses)
	if err != nil {
		return nil, err
	}

	before := accessPayload(user)
	user.Role = req.Role
	user.IsReadOnly = req.IsReadOnly
	user.AllowedClasses = classes

	if err := s.repo.UpdateAccess(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user access")
	}

	s.recordAudit(ctx, actorID, models.AuditActionUserAccess, user.ID, before, accessPayload(user), meta)
	s.logger.Info("user access updated",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Bool("read_only", user.IsReadOnly),
		zap.Strings("allowed_classes", user.AllowedClasses),
	)
	return user, nil
}

// Delete performs a soft delete (inactive) on a user.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta dto.AuditMeta) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot delete your own account")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.recordAudit(ctx, actorID, models.AuditActionUserDelete, user.ID, map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": false}, meta)
	return nil
}

// normalizeClasses trims, de-duplicates and sorts class names and checks that
// each one names an existing class.
func (s *UserService) normalizeClasses(ctx context.Context, names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if s.classes != nil {
			exists, err := s.classes.ExistsByName(ctx, name, "")
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class")
			}
			if !exists {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class %s does not exist", name))
			}
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *UserService) recordAudit(ctx context.Context, actorID, action, userID string, oldValues, newValues interface{}, meta dto.AuditMeta) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     strPtr(actorID),
		Action:     action,
		Resource:   userAuditResource,
		ResourceID: strPtr(userID),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

func accessPayload(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"email":           user.Email,
		"role":            user.Role,
		"active":          user.Active,
		"is_read_only":    user.IsReadOnly,
		"allowed_classes": []string(user.AllowedClasses),
	}
}
