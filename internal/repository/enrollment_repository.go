package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusreg/enrollment-api/internal/models"
)

// ErrStatusConflict reports that a guarded status transition matched no row:
// the enrollment left the expected state after the caller last read it.
var ErrStatusConflict = errors.New("enrollment status changed concurrently")

// EnrollmentRepository handles persistence of enrollments. Enrollment rows
// are append-only: status transitions update them, nothing deletes them.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = "id, student_id, course_id, semester, status, grade, enrolled_at, dropped_at, completed_at"

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and course context.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.semester, e.status, e.grade, e.enrolled_at, e.dropped_at, e.completed_at,
        s.full_name AS student_name, c.code AS course_code, c.title AS course_title, c.credits
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("e.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.full_name",
		"course_code":  "c.code",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.semester, e.status, e.grade, e.enrolled_at, e.dropped_at, e.completed_at,
        s.full_name AS student_name, c.code AS course_code, c.title AS course_title, c.credits
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListLive returns the live (enrolled or completed) enrollments for a
// (student, course, semester) triple, used for the duplicate check.
func (r *EnrollmentRepository) ListLive(ctx context.Context, studentID, courseID, semester string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
        WHERE student_id = $1 AND course_id = $2 AND semester = $3 AND status IN ($4, $5)`, enrollmentColumns)
	var enrollments []models.Enrollment
	err := r.db.SelectContext(ctx, &enrollments, query, studentID, courseID, semester,
		models.EnrollmentStatusEnrolled, models.EnrollmentStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list live enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByCourse returns the enrollments for a course, newest first.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE course_id = $1 ORDER BY enrolled_at DESC", enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// CompletedByStudent returns the student's completed-course set with grades.
func (r *EnrollmentRepository) CompletedByStudent(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	const query = `SELECT e.course_id, c.code AS course_code, c.credits, e.grade
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.status = $2`
	var completed []models.CompletedCourse
	if err := r.db.SelectContext(ctx, &completed, query, studentID, models.EnrollmentStatusCompleted); err != nil {
		return nil, fmt.Errorf("load completed courses: %w", err)
	}
	return completed, nil
}

// CompletedByStudentTx is CompletedByStudent inside a transaction, so a GPA
// recompute sees the grade row written moments earlier.
func (r *EnrollmentRepository) CompletedByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.CompletedCourse, error) {
	const query = `SELECT e.course_id, c.code AS course_code, c.credits, e.grade
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.status = $2`
	var completed []models.CompletedCourse
	if err := tx.SelectContext(ctx, &completed, query, studentID, models.EnrollmentStatusCompleted); err != nil {
		return nil, fmt.Errorf("load completed courses: %w", err)
	}
	return completed, nil
}

// CountLiveTx counts live enrollments for the triple inside a transaction,
// re-validating the duplicate rule against committed state.
func (r *EnrollmentRepository) CountLiveTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID, semester string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments
        WHERE student_id = $1 AND course_id = $2 AND semester = $3 AND status IN ($4, $5)`
	var count int
	err := tx.GetContext(ctx, &count, query, studentID, courseID, semester,
		models.EnrollmentStatusEnrolled, models.EnrollmentStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("count live enrollments: %w", err)
	}
	return count, nil
}

// CreateTx persists a new enrollment record inside a transaction. The partial
// unique index on (student_id, course_id, semester) for live rows backs the
// duplicate rule; callers translate the unique violation.
func (r *EnrollmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusEnrolled
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, semester, status, grade, enrolled_at, dropped_at, completed_at)
        VALUES (:id, :student_id, :course_id, :semester, :status, :grade, :enrolled_at, :dropped_at, :completed_at)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// MarkDroppedTx transitions an enrollment to DROPPED inside a transaction.
// The update is guarded on the current status: DROPPED and COMPLETED are
// terminal, so a row a concurrent transaction already moved stays untouched
// and the caller gets ErrStatusConflict.
func (r *EnrollmentRepository) MarkDroppedTx(ctx context.Context, tx *sqlx.Tx, id string, droppedAt time.Time) error {
	const query = `UPDATE enrollments SET status = $2, dropped_at = $3 WHERE id = $1 AND status = $4`
	result, err := tx.ExecContext(ctx, query, id, models.EnrollmentStatusDropped, droppedAt, models.EnrollmentStatusEnrolled)
	if err != nil {
		return fmt.Errorf("mark enrollment dropped: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark enrollment dropped: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MarkCompletedTx transitions an enrollment to COMPLETED with its final
// grade, guarded the same way as MarkDroppedTx.
func (r *EnrollmentRepository) MarkCompletedTx(ctx context.Context, tx *sqlx.Tx, id, grade string, completedAt time.Time) error {
	const query = `UPDATE enrollments SET status = $2, grade = $3, completed_at = $4 WHERE id = $1 AND status = $5`
	result, err := tx.ExecContext(ctx, query, id, models.EnrollmentStatusCompleted, grade, completedAt, models.EnrollmentStatusEnrolled)
	if err != nil {
		return fmt.Errorf("mark enrollment completed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark enrollment completed: %w", err)
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}
