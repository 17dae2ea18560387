package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/permission"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

type permissionUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type dataEntryLockReader interface {
	DataEntryLocked(ctx context.Context) (bool, error)
}

// PermissionService turns an authenticated session into capabilities. Role,
// read-only flag and allowed classes come from the stored user, not the
// token, so access changes apply on the next request.
type PermissionService struct {
	users  permissionUserReader
	lock   dataEntryLockReader
	logger *zap.Logger
}

// NewPermissionService constructs the permission service.
func NewPermissionService(users permissionUserReader, lock dataEntryLockReader, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{users: users, lock: lock, logger: logger}
}

// Input loads the session state for the claims. Missing claims, unknown or
// inactive users yield an unauthenticated input.
func (s *PermissionService) Input(ctx context.Context, claims *models.JWTClaims) (permission.Input, error) {
	if claims == nil || claims.UserID == "" {
		return permission.Input{}, nil
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return permission.Input{}, nil
		}
		return permission.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user permissions")
	}
	if !user.Active {
		return permission.Input{}, nil
	}

	locked, err := s.lock.DataEntryLocked(ctx)
	if err != nil {
		// Without the lock state only admins keep editing.
		s.logger.Warn("failed to read data entry lock, assuming locked", zap.Error(err))
		locked = true
	}

	return permission.Input{
		Authenticated: true,
		User: &permission.Subject{
			ID:             user.ID,
			Role:           user.Role,
			IsReadOnly:     user.IsReadOnly,
			AllowedClasses: []string(user.AllowedClasses),
		},
		DataEntryLocked: locked,
	}, nil
}

// Resolve returns the capabilities of the claims under the scope options.
func (s *PermissionService) Resolve(ctx context.Context, claims *models.JWTClaims, opts permission.Options) (permission.Capabilities, error) {
	in, err := s.Input(ctx, claims)
	if err != nil {
		return permission.Restricted(), err
	}
	return permission.Resolve(in, opts), nil
}
