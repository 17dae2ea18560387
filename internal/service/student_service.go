package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/indexnumber"
	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/internal/permission"
	"github.com/noah-isme/sma-roster-api/pkg/database"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/export"
)

const (
	studentAuditResource = "student"
	historyLimit         = 50
	birthDateLayout      = "2006-01-02"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListAll(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListIndexEntries(ctx context.Context, exec sqlx.QueryerContext, class *models.Class) ([]models.StudentIndexEntry, error)
	ExistsByIndexNumber(ctx context.Context, exec sqlx.QueryerContext, scope, indexNumber, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type studentClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByName(ctx context.Context, name string) (*models.Class, error)
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error)
	UpdateCounter(ctx context.Context, exec sqlx.ExtContext, id string, next int) error
}

type indexNumberSettings interface {
	Settings(ctx context.Context) (models.SchoolSettings, error)
	LockGlobalCounter(ctx context.Context, exec sqlx.ExtContext) (int, error)
	StoreGlobalCounter(ctx context.Context, exec sqlx.ExtContext, next int, actor *models.JWTClaims) error
	InvalidateCache(ctx context.Context)
}

type auditTrail interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// StudentServiceConfig governs allocation behaviour.
type StudentServiceConfig struct {
	MaxRetries int
}

// StudentService handles student use-cases including index number allocation.
type StudentService struct {
	repo      studentRepository
	classes   studentClassRepository
	settings  indexNumberSettings
	tx        txProvider
	audit     auditTrail
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       StudentServiceConfig
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classes studentClassRepository, settings indexNumberSettings, tx txProvider, audit auditTrail, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg StudentServiceConfig) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &StudentService{
		repo:      repo,
		classes:   classes,
		settings:  settings,
		tx:        tx,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// History returns the audit trail of a student, newest first.
func (s *StudentService) History(ctx context.Context, id string) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.audit.ListByResource(ctx, studentAuditResource, id, historyLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student history")
	}
	return logs, nil
}

// NextIndexNumber previews the index number the next student of the class
// would receive. The preview reads an unlocked snapshot and is only a hint:
// a concurrent create may take the number first.
func (s *StudentService) NextIndexNumber(ctx context.Context, classID string) (*dto.NextIndexNumberResponse, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	class, err := s.resolveClass(ctx, classID, "")
	if err != nil {
		return nil, err
	}
	var scopeClass *models.Class
	if indexnumber.PerClass(settings, class) {
		scopeClass = class
	}
	entries, err := s.repo.ListIndexEntries(ctx, nil, scopeClass)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read roster")
	}
	alloc := indexnumber.Allocate(entries, settings, class)
	return &dto.NextIndexNumberResponse{
		IndexNumber: alloc.IndexNumber,
		Counter:     alloc.Counter,
		Scope:       alloc.Scope,
		PerClass:    alloc.PerClass,
		AutoAssign:  settings.IndexNumberAutoAssign,
	}, nil
}

// Create registers a new student. With auto-assign on, the index number is
// allocated inside a transaction holding the scope counter lock and the
// attempt is repeated when the unique index rejects the number.
func (s *StudentService) Create(ctx context.Context, req dto.CreateStudentRequest, actor *models.JWTClaims) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	caps := permission.FromContext(ctx)
	if !caps.CanAdd {
		return nil, appErrors.ErrReadOnly
	}

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	class, err := s.resolveClass(ctx, req.ClassID, req.ClassName)
	if err != nil {
		return nil, err
	}
	className := strings.TrimSpace(req.ClassName)
	if class != nil {
		className = class.Name
	}
	if err := authorizeClass(caps, className); err != nil {
		return nil, err
	}

	manual := strings.TrimSpace(req.IndexNumber)
	if manual != "" && settings.IndexNumberAutoAssign && caps.UserRole != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrValidation, "index numbers are assigned automatically")
	}
	if manual == "" && !settings.IndexNumberAutoAssign {
		return nil, appErrors.Clone(appErrors.ErrValidation, "index number is required while auto assign is disabled")
	}

	student := &models.Student{
		ClassName: className,
		FullName:  strings.TrimSpace(req.FullName),
		Gender:    req.Gender,
		BirthDate: req.BirthDate,
		Address:   req.Address,
		Phone:     req.Phone,
		Active:    true,
	}
	if class != nil {
		id := class.ID
		student.ClassID = &id
	}

	start := time.Now()
	var alloc indexnumber.Allocation
	source := AllocationSourceAuto
	if manual != "" {
		source = AllocationSourceManual
		alloc, err = s.createManual(ctx, student, manual, settings, class)
	} else {
		alloc, err = s.createWithRetry(ctx, student, settings, class, actor)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAllocation(alloc.PerClass, source, time.Since(start))
	s.emitAudit(ctx, actor, models.AuditActionStudentCreate, student.ID, nil, map[string]any{
		"index_number": student.IndexNumber,
		"scope":        alloc.Scope,
		"counter":      alloc.Counter,
		"class_name":   student.ClassName,
		"source":       source,
	})
	s.logger.Info("student created",
		zap.String("student_id", student.ID),
		zap.String("index_number", student.IndexNumber),
		zap.String("scope", alloc.Scope),
		zap.String("source", source),
	)
	return student, nil
}

func (s *StudentService) createWithRetry(ctx context.Context, student *models.Student, settings models.SchoolSettings, class *models.Class, actor *models.JWTClaims) (indexnumber.Allocation, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		alloc, err := s.allocateAndInsert(ctx, student, settings, class, actor)
		if err == nil {
			if !alloc.PerClass {
				s.settings.InvalidateCache(ctx)
			}
			return alloc, nil
		}
		if !database.IsRetryable(err) {
			return indexnumber.Allocation{}, err
		}
		lastErr = err
		s.metrics.RecordAllocationConflict()
		s.logger.Warn("index number allocation conflicted, retrying",
			zap.Int("attempt", attempt+1),
			zap.String("scope", alloc.Scope),
			zap.String("index_number", alloc.IndexNumber),
			zap.Error(err),
		)
	}
	return indexnumber.Allocation{}, appErrors.Wrap(lastErr, appErrors.ErrIndexNumberTaken.Code, appErrors.ErrIndexNumberTaken.Status, "could not allocate a free index number, try again")
}

// allocateAndInsert runs one allocation attempt. The returned allocation is
// populated even on failure so callers can log the attempted number.
func (s *StudentService) allocateAndInsert(ctx context.Context, student *models.Student, settings models.SchoolSettings, class *models.Class, actor *models.JWTClaims) (alloc indexnumber.Allocation, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return alloc, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	perClass := indexnumber.PerClass(settings, class)
	var scopeClass *models.Class
	if perClass {
		scopeClass, err = s.classes.LockForUpdate(ctx, tx, class.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return alloc, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return alloc, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock class counter")
		}
	} else {
		counter, lockErr := s.settings.LockGlobalCounter(ctx, tx)
		if lockErr != nil {
			return alloc, lockErr
		}
		settings.IndexNumberGlobalCounter = counter
	}

	readStart := time.Now()
	entries, err := s.repo.ListIndexEntries(ctx, tx, scopeClass)
	s.metrics.ObserveDBQuery("student_index_entries", time.Since(readStart))
	if err != nil {
		return alloc, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read roster")
	}
	allocClass := class
	if scopeClass != nil {
		allocClass = scopeClass
	}
	alloc = indexnumber.Allocate(entries, settings, allocClass)

	student.ID = ""
	student.IndexNumber = alloc.IndexNumber
	student.IndexScope = alloc.Scope
	if err = s.repo.Create(ctx, tx, student); err != nil {
		return alloc, err
	}

	if perClass {
		err = s.classes.UpdateCounter(ctx, tx, scopeClass.ID, alloc.NextCounter)
	} else {
		err = s.settings.StoreGlobalCounter(ctx, tx, alloc.NextCounter, actor)
	}
	if err != nil {
		return alloc, err
	}

	if err = tx.Commit(); err != nil {
		return alloc, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit student")
	}
	return alloc, nil
}

func (s *StudentService) createManual(ctx context.Context, student *models.Student, indexNumber string, settings models.SchoolSettings, class *models.Class) (alloc indexnumber.Allocation, err error) {
	alloc = indexnumber.Allocation{
		IndexNumber: indexNumber,
		Scope:       indexnumber.Scope(settings, class),
		PerClass:    indexnumber.PerClass(settings, class),
	}
	if counter, ok := indexnumber.ExtractCounter(indexNumber, settings, scopeClassOf(settings, class)); ok {
		alloc.Counter = counter
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return alloc, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exists, err := s.repo.ExistsByIndexNumber(ctx, tx, alloc.Scope, indexNumber, "")
	if err != nil {
		return alloc, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate index number")
	}
	if exists {
		err = appErrors.Clone(appErrors.ErrIndexNumberTaken, fmt.Sprintf("index number %s is already used", indexNumber))
		return alloc, err
	}

	student.IndexNumber = indexNumber
	student.IndexScope = alloc.Scope
	if err = s.repo.Create(ctx, tx, student); err != nil {
		if database.IsUniqueViolation(err, "") {
			s.metrics.RecordAllocationConflict()
			err = appErrors.Wrap(err, appErrors.ErrIndexNumberTaken.Code, appErrors.ErrIndexNumberTaken.Status, fmt.Sprintf("index number %s is already used", indexNumber))
			return alloc, err
		}
		return alloc, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	if err = tx.Commit(); err != nil {
		return alloc, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit student")
	}
	return alloc, nil
}

// Update modifies an existing student. The index number keeps its scope when
// the student changes class and can only be edited while auto-assign is off.
func (s *StudentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest, actor *models.JWTClaims) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	caps := permission.FromContext(ctx)
	if !caps.CanEdit {
		return nil, appErrors.ErrReadOnly
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeClass(caps, student.ClassName); err != nil {
		return nil, err
	}
	before := *student

	if req.ClassID != nil {
		if *req.ClassID == "" {
			student.ClassID = nil
			student.ClassName = ""
		} else {
			class, err := s.resolveClass(ctx, *req.ClassID, "")
			if err != nil {
				return nil, err
			}
			classID := class.ID
			student.ClassID = &classID
			student.ClassName = class.Name
		}
		if err := authorizeClass(caps, student.ClassName); err != nil {
			return nil, err
		}
	}
	if req.IndexNumber != nil {
		next := strings.TrimSpace(*req.IndexNumber)
		if next != student.IndexNumber {
			if err := s.changeIndexNumber(ctx, student, next); err != nil {
				return nil, err
			}
		}
	}
	if req.FullName != nil {
		student.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Gender != nil {
		student.Gender = *req.Gender
	}
	if req.BirthDate != nil {
		student.BirthDate = *req.BirthDate
	}
	if req.Address != nil {
		student.Address = *req.Address
	}
	if req.Phone != nil {
		student.Phone = *req.Phone
	}
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Wrap(err, appErrors.ErrIndexNumberTaken.Code, appErrors.ErrIndexNumberTaken.Status, "index number already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.emitAudit(ctx, actor, models.AuditActionStudentUpdate, student.ID, before, student)
	return student, nil
}

func (s *StudentService) changeIndexNumber(ctx context.Context, student *models.Student, next string) error {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return err
	}
	if settings.IndexNumberAutoAssign {
		return appErrors.Clone(appErrors.ErrValidation, "index number cannot be changed while auto assign is enabled")
	}
	if next == "" {
		return appErrors.Clone(appErrors.ErrValidation, "index number cannot be empty")
	}
	exists, err := s.repo.ExistsByIndexNumber(ctx, nil, student.IndexScope, next, student.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate index number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrIndexNumberTaken, fmt.Sprintf("index number %s is already used", next))
	}
	student.IndexNumber = next
	return nil
}

// Deactivate marks a student inactive. The index number stays reserved.
func (s *StudentService) Deactivate(ctx context.Context, id string, actor *models.JWTClaims) error {
	caps := permission.FromContext(ctx)
	if !caps.CanDelete {
		return appErrors.ErrReadOnly
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeClass(caps, student.ClassName); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.emitAudit(ctx, actor, models.AuditActionStudentDelete, id, map[string]any{"index_number": student.IndexNumber}, nil)
	return nil
}

// Export renders the filtered roster in the requested format.
func (s *StudentService) Export(ctx context.Context, filter models.StudentFilter, rawFormat string) (*dto.ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	students, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	title := "Student Roster"
	if settings, err := s.settings.Settings(ctx); err == nil && settings.SchoolDisplayName != "" {
		title = settings.SchoolDisplayName + " Student Roster"
	}
	dataset := export.Dataset{
		Title:   title,
		Headers: []string{"No", "Index Number", "Full Name", "Gender", "Class", "Birth Date", "Status"},
		Rows:    make([]map[string]string, 0, len(students)),
	}
	for i, student := range students {
		status := "Active"
		if !student.Active {
			status = "Inactive"
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"No":           strconv.Itoa(i + 1),
			"Index Number": student.IndexNumber,
			"Full Name":    student.FullName,
			"Gender":       student.Gender,
			"Class":        student.ClassName,
			"Birth Date":   student.BirthDate.Format(birthDateLayout),
			"Status":       status,
		})
	}
	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("students-%s.%s", time.Now().UTC().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// Import creates one student per spreadsheet row after the header. Columns
// are full name, gender, birth date, class name and an optional index number.
// Failed rows are reported and do not stop the import.
func (s *StudentService) Import(ctx context.Context, r io.Reader, actor *models.JWTClaims) (*dto.ImportStudentsResult, error) {
	rows, err := export.ReadSheet(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid spreadsheet")
	}
	result := &dto.ImportStudentsResult{Failed: []dto.ImportRowError{}, Students: []models.Student{}}
	if len(rows) <= 1 {
		return result, nil
	}
	for i, row := range rows[1:] {
		rowNumber := i + 2
		if blankRow(row) {
			continue
		}
		req, err := importRequest(row)
		if err == nil {
			var student *models.Student
			student, err = s.Create(ctx, req, actor)
			if err == nil {
				result.Imported++
				result.Students = append(result.Students, *student)
				continue
			}
		}
		if appErrors.Is(err, appErrors.ErrReadOnly) {
			return nil, err
		}
		result.Failed = append(result.Failed, dto.ImportRowError{Row: rowNumber, Message: appErrors.FromError(err).Message})
	}
	s.logger.Info("student import finished", zap.Int("imported", result.Imported), zap.Int("failed", len(result.Failed)))
	return result, nil
}

func importRequest(row []string) (dto.CreateStudentRequest, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	req := dto.CreateStudentRequest{
		FullName:    cell(0),
		Gender:      strings.ToUpper(cell(1)),
		ClassName:   cell(3),
		IndexNumber: cell(4),
	}
	if raw := cell(2); raw != "" {
		birthDate, err := time.Parse(birthDateLayout, raw)
		if err != nil {
			return req, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("birth date %q must use YYYY-MM-DD", raw))
		}
		req.BirthDate = birthDate
	}
	return req, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// resolveClass loads the class by id, or by name when no id is given. A name
// without a class record is a legacy value and resolves to nil.
func (s *StudentService) resolveClass(ctx context.Context, classID, className string) (*models.Class, error) {
	classID = strings.TrimSpace(classID)
	className = strings.TrimSpace(className)
	switch {
	case classID != "":
		class, err := s.classes.FindByID(ctx, classID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		return class, nil
	case className != "":
		class, err := s.classes.FindByName(ctx, className)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		return class, nil
	default:
		return nil, nil
	}
}

func (s *StudentService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, studentID string, oldValues, newValues any) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     action,
		Resource:   studentAuditResource,
		ResourceID: strPtr(studentID),
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write student audit log", zap.String("student_id", studentID), zap.Error(err))
	}
}

func authorizeClass(caps permission.Capabilities, className string) error {
	if caps.CanManageClass(className) {
		return nil
	}
	if !caps.CanEdit {
		return appErrors.ErrReadOnly
	}
	if className == "" {
		return appErrors.Clone(appErrors.ErrForbidden, "a class you manage is required")
	}
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not allowed to manage class %s", className))
}

func scopeClassOf(settings models.SchoolSettings, class *models.Class) *models.Class {
	if indexnumber.PerClass(settings, class) {
		return class
	}
	return nil
}
