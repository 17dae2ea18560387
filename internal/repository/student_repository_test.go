package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/pkg/database"
)

var studentRowColumns = []string{"id", "index_number", "index_scope", "class_id", "class_name", "full_name", "gender", "birth_date", "address", "phone", "active", "created_at", "updated_at"}

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("1", "SCH-0001", "global", "c1", "X-A", "Ayu", "F", now, "Street", "123", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + studentColumns + " FROM students s WHERE 1=1 AND s.class_id = $1 ORDER BY s.index_number ASC LIMIT 20 OFFSET 0")).
		WithArgs("c1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s WHERE 1=1 AND s.class_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{ClassID: "c1", SortBy: "index_number", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "SCH-0001", students[0].IndexNumber)
	require.NotNil(t, students[0].ClassID)
	assert.Equal(t, "c1", *students[0].ClassID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListIndexEntriesForClass(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"index_number", "class_id", "class_name", "index_scope"}).
		AddRow("A-1", "c1", "X-A", "class:c1").
		AddRow("A-7", nil, "X-A", "global").
		AddRow("A-50", "c2", "X-B", "class:c1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT index_number, class_id, class_name, index_scope FROM students WHERE class_id = $1 OR (class_id IS NULL AND class_name = $2) OR index_scope = $3")).
		WithArgs("c1", "X-A", "class:c1").
		WillReturnRows(rows)

	entries, err := repo.ListIndexEntries(context.Background(), nil, &models.Class{ID: "c1", Name: "X-A"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Nil(t, entries[1].ClassID)
	assert.Equal(t, "X-A", entries[1].ClassName)
	assert.Equal(t, "class:c1", entries[2].IndexScope)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListIndexEntriesGlobal(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT index_number, class_id, class_name, index_scope FROM students")).
		WillReturnRows(sqlmock.NewRows([]string{"index_number", "class_id", "class_name", "index_scope"}).AddRow("SCH-3", nil, "", "global"))

	entries, err := repo.ListIndexEntries(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByIndexNumber(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE index_scope = $1 AND index_number = $2 AND id <> $3 LIMIT 1")).
		WithArgs("global", "SCH-4", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE index_scope = $1 AND index_number = $2 LIMIT 1")).
		WithArgs("class:c1", "A-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByIndexNumber(context.Background(), nil, "global", "SCH-4", "s1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByIndexNumber(context.Background(), nil, "class:c1", "A-2", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateInTransaction(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "SCH-4", "global", nil, "", "Ayu", "F", sqlmock.AnyArg(), "", "", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	student := &models.Student{IndexNumber: "SCH-4", IndexScope: "global", FullName: "Ayu", Gender: "F", BirthDate: time.Now(), Active: true}
	require.NoError(t, repo.Create(context.Background(), tx, student))
	require.NoError(t, tx.Commit())
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateSurfacesUniqueViolation(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_index_scope_number_key"})

	err := repo.Create(context.Background(), nil, &models.Student{IndexNumber: "SCH-4", IndexScope: "global", FullName: "Ayu"})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET active = false, updated_at = $2 WHERE id = $1")).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
