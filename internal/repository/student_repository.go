package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-roster-api/internal/indexnumber"
	"github.com/noah-isme/sma-roster-api/internal/models"
)

const studentColumns = `s.id, s.index_number, s.index_scope, s.class_id, s.class_name, s.full_name, s.gender, s.birth_date, s.address, s.phone, s.active, s.created_at, s.updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func studentConditions(filter models.StudentFilter) (string, []interface{}) {
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.ClassName != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_name = $%d", len(args)+1))
		args = append(args, filter.ClassName)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.index_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	return "FROM students s WHERE " + strings.Join(conditions, " AND "), args
}

func studentOrder(filter models.StudentFilter) string {
	allowedSorts := map[string]string{
		"full_name":    "s.full_name",
		"index_number": "s.index_number",
		"class_name":   "s.class_name",
		"created_at":   "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return column + " " + order
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base, args := studentConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d`, studentColumns, base, studentOrder(filter), size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListAll returns every student matching the filter ordered by class and
// index number. Paging fields are ignored.
func (r *StudentRepository) ListAll(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	base, args := studentConditions(filter)
	query := fmt.Sprintf(`SELECT %s %s ORDER BY s.class_name ASC, s.index_number ASC`, studentColumns, base)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s WHERE s.id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListIndexEntries returns the index numbers already handed out. With a
// class it returns the class roster, matching legacy rows without a class id
// by name, plus every row numbered in the class scope even after its student
// moved away. Without a class it returns the whole school. Inactive students
// are included so their numbers are never reused.
func (r *StudentRepository) ListIndexEntries(ctx context.Context, exec sqlx.QueryerContext, class *models.Class) ([]models.StudentIndexEntry, error) {
	if exec == nil {
		exec = r.db
	}
	query := `SELECT index_number, class_id, class_name, index_scope FROM students`
	var args []interface{}
	if class != nil {
		query += ` WHERE class_id = $1 OR (class_id IS NULL AND class_name = $2) OR index_scope = $3`
		args = append(args, class.ID, class.Name, indexnumber.ClassScope(class))
	}
	var entries []models.StudentIndexEntry
	if err := sqlx.SelectContext(ctx, exec, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list index entries: %w", err)
	}
	return entries, nil
}

// ExistsByIndexNumber checks whether the index number is taken inside the scope.
func (r *StudentRepository) ExistsByIndexNumber(ctx context.Context, exec sqlx.QueryerContext, scope, indexNumber, excludeID string) (bool, error) {
	if exec == nil {
		exec = r.db
	}
	query := "SELECT 1 FROM students WHERE index_scope = $1 AND index_number = $2"
	args := []interface{}{scope, indexNumber}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := sqlx.GetContext(ctx, exec, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check index number: %w", err)
	}
	return true, nil
}

// Create inserts a new student record. Driver errors are wrapped so callers
// can detect unique violations on (index_scope, index_number).
func (r *StudentRepository) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if exec == nil {
		exec = r.db
	}
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, index_number, index_scope, class_id, class_name, full_name, gender, birth_date, address, phone, active, created_at, updated_at)
        VALUES (:id, :index_number, :index_scope, :class_id, :class_name, :full_name, :gender, :birth_date, :address, :phone, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET index_number = :index_number, index_scope = :index_scope, class_id = :class_id, class_name = :class_name,
        full_name = :full_name, gender = :gender, birth_date = :birth_date, address = :address, phone = :phone, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive. The index number stays reserved.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
