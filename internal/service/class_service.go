package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/permission"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	ExistsByName(ctx context.Context, name string, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	CountStudents(ctx context.Context, classID string) (int, error)
}

// ClassService coordinates class operations.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns classes with pagination metadata. With onlyManaged set,
// non-admin callers only see the classes they may manage.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter, onlyManaged bool) ([]models.Class, *models.Pagination, error) {
	if onlyManaged {
		caps := permission.FromContext(ctx)
		if caps.UserRole != models.RoleAdmin {
			filter.Names = caps.AllowedClasses()
		}
	}
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Get returns detailed class information.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return detail, nil
}

// Create adds a new class. Numbering starts at 1 unless a counter is given.
func (s *ClassService) Create(ctx context.Context, req dto.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:               name,
		Grade:              strings.TrimSpace(req.Grade),
		Track:              strings.TrimSpace(req.Track),
		IndexNumberCounter: req.IndexNumberCounter,
		IndexNumberPrefix:  req.IndexNumberPrefix,
		IndexNumberSuffix:  req.IndexNumberSuffix,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("name", class.Name))
	return class, nil
}

// Update modifies a class record. Existing index numbers are never rewritten
// when the affixes change; only new allocations pick them up.
func (s *ClassService) Update(ctx context.Context, id string, req dto.UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, id); err != nil {
		return nil, err
	}

	class.Name = name
	class.Grade = strings.TrimSpace(req.Grade)
	class.Track = strings.TrimSpace(req.Track)
	if req.IndexNumberCounter != nil {
		class.IndexNumberCounter = *req.IndexNumberCounter
	}
	if req.IndexNumberPrefix != nil {
		class.IndexNumberPrefix = *req.IndexNumberPrefix
	}
	if req.IndexNumberSuffix != nil {
		class.IndexNumberSuffix = *req.IndexNumberSuffix
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class that no student references.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if count, err := s.repo.CountStudents(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class students")
	} else if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class still has students")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

func (s *ClassService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "class name already exists")
	}
	return nil
}
