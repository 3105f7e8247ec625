package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusreg/enrollment-api/internal/models"
)

func courseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "code", "title", "credits", "capacity", "enrolled_count", "grader_id", "created_at", "updated_at"})
}

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("crs-1", "CS200", "Data Structures", 3, 30, 12, "grd-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, title, credits, capacity, enrolled_count, grader_id, created_at, updated_at FROM courses WHERE id = $1")).
		WithArgs("crs-1").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "crs-1")
	require.NoError(t, err)
	assert.Equal(t, "CS200", course.Code)
	assert.Equal(t, 30, course.Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("crs-1", "CS200", "Data Structures", 3, 30, 12, "grd-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, title, credits, capacity, enrolled_count, grader_id, created_at, updated_at FROM courses WHERE code = $1")).
		WithArgs("CS200").
		WillReturnRows(rows)

	course, err := repo.FindByCode(context.Background(), "CS200")
	require.NoError(t, err)
	assert.Equal(t, "crs-1", course.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{Code: "CS300", Title: "Compilers", Credits: 3, Capacity: 25, GraderID: "grd-1"}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.NotEmpty(t, course.ID)
	assert.False(t, course.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryPrerequisites(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"prerequisite_id"}).AddRow("crs-0").AddRow("crs-1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT prerequisite_id FROM course_prerequisites WHERE course_id = $1")).
		WithArgs("crs-2").
		WillReturnRows(rows)

	ids, err := repo.Prerequisites(context.Background(), "crs-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"crs-0", "crs-1"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryList(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := courseRows().
		AddRow("crs-1", "CS200", "Data Structures", 3, 30, 12, "grd-1", time.Now(), time.Now())
	mock.ExpectQuery("SELECT .* FROM courses WHERE \\(code ILIKE \\$1 OR title ILIKE \\$1\\) ORDER BY code ASC LIMIT 20 OFFSET 0").
		WithArgs("%CS%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE (code ILIKE $1 OR title ILIKE $1)")).
		WithArgs("%CS%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{Search: "CS"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDForUpdateTx(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	rows := courseRows().
		AddRow("crs-1", "CS200", "Data Structures", 3, 30, 30, "grd-1", time.Now(), time.Now())
	mock.ExpectQuery("SELECT .* FROM courses WHERE id = \\$1 FOR UPDATE").
		WithArgs("crs-1").
		WillReturnRows(rows)
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	course, err := repo.FindByIDForUpdateTx(context.Background(), tx, "crs-1")
	require.NoError(t, err)
	assert.Equal(t, course.Capacity, course.EnrolledCount)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryAdjustEnrolledCountTx(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE courses SET enrolled_count = enrolled_count \\+ \\$2").
		WithArgs("crs-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.AdjustEnrolledCountTx(context.Background(), tx, "crs-1", 1))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryAdjustEnrolledCountTxBoundGuard(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	// Zero rows affected means the update would leave [0, capacity].
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE courses SET enrolled_count = enrolled_count \\+ \\$2").
		WithArgs("crs-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	err = repo.AdjustEnrolledCountTx(context.Background(), tx, "crs-1", 1)
	assert.Error(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
