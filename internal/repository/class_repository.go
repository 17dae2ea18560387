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
	"github.com/lib/pq"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

const classColumns = `id, name, grade, track, index_number_counter, index_number_prefix, index_number_suffix, created_at, updated_at`

// ClassRepository manages persistence for classes and their index-number counters.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filter criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	base := "FROM classes WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Track != "" {
		conditions = append(conditions, fmt.Sprintf("track = $%d", len(args)+1))
		args = append(args, filter.Track)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d)", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Names != nil {
		conditions = append(conditions, fmt.Sprintf("name = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.Names))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"grade":      true,
		"track":      true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classColumns, base, sortBy, order, size, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByName returns a class by its case-insensitive name.
func (r *ClassRepository) FindByName(ctx context.Context, name string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, strings.TrimSpace(name)); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetailByID returns the class with the number of active students in it.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT c.id, c.name, c.grade, c.track, c.index_number_counter, c.index_number_prefix, c.index_number_suffix,
        c.created_at, c.updated_at,
        (SELECT COUNT(*) FROM students s WHERE s.active AND (s.class_id = c.id OR (s.class_id IS NULL AND s.class_name = c.name))) AS student_count
        FROM classes c WHERE c.id = $1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByName checks if a class with the same name already exists.
func (r *ClassRepository) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM classes WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check class name: %w", err)
	}
	return true, nil
}

// Create persists a class record. A new class starts numbering at 1 unless
// the caller seeds the counter.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.IndexNumberCounter <= 0 {
		class.IndexNumberCounter = 1
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, grade, track, index_number_counter, index_number_prefix, index_number_suffix, created_at, updated_at)
VALUES (:id, :name, :grade, :track, :index_number_counter, :index_number_prefix, :index_number_suffix, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class record including its numbering scheme. Students
// linked by id get the new class name in the same transaction.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin class update tx: %w", err)
	}
	const query = `UPDATE classes SET name = :name, grade = :grade, track = :track, index_number_counter = :index_number_counter,
index_number_prefix = :index_number_prefix, index_number_suffix = :index_number_suffix, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, class); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update class: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE students SET class_name = $2 WHERE class_id = $1 AND class_name <> $2`, class.ID, class.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rename class students: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit class update: %w", err)
	}
	return nil
}

// Delete removes a class record.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// CountStudents returns how many students reference the class.
func (r *ClassRepository) CountStudents(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM students WHERE class_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count class students: %w", err)
	}
	return count, nil
}

// LockForUpdate reads the class and holds its row lock until exec's
// transaction ends. Concurrent allocations in the class queue behind it.
func (r *ClassRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Class, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1 FOR UPDATE`
	var class models.Class
	if err := sqlx.GetContext(ctx, exec, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// UpdateCounter stores the next free counter of the class. The counter
// never moves backwards.
func (r *ClassRepository) UpdateCounter(ctx context.Context, exec sqlx.ExtContext, id string, next int) error {
	const query = `UPDATE classes SET index_number_counter = GREATEST(index_number_counter, $2), updated_at = $3 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, id, next, time.Now().UTC()); err != nil {
		return fmt.Errorf("update class counter: %w", err)
	}
	return nil
}
