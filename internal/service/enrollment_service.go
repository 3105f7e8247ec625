package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campusreg/enrollment-api/internal/models"
	"github.com/campusreg/enrollment-api/internal/repository"
	"github.com/campusreg/enrollment-api/internal/rules"
	"github.com/campusreg/enrollment-api/pkg/config"
	appErrors "github.com/campusreg/enrollment-api/pkg/errors"
)

type studentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
	AdjustCreditsTx(ctx context.Context, tx *sqlx.Tx, id string, delta int) error
	UpdateGPATx(ctx context.Context, tx *sqlx.Tx, id string, gpa float64) error
}

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Prerequisites(ctx context.Context, courseID string) ([]string, error)
	FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Course, error)
	AdjustEnrolledCountTx(ctx context.Context, tx *sqlx.Tx, id string, delta int) error
}

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListLive(ctx context.Context, studentID, courseID, semester string) ([]models.Enrollment, error)
	CompletedByStudent(ctx context.Context, studentID string) ([]models.CompletedCourse, error)
	CompletedByStudentTx(ctx context.Context, tx *sqlx.Tx, studentID string) ([]models.CompletedCourse, error)
	CountLiveTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID, semester string) (int, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
	MarkDroppedTx(ctx context.Context, tx *sqlx.Tx, id string, droppedAt time.Time) error
	MarkCompletedTx(ctx context.Context, tx *sqlx.Tx, id, grade string, completedAt time.Time) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type entityCache interface {
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest interface{}, compute func(context.Context) (interface{}, error)) error
	Invalidate(ctx context.Context, keys ...string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.EnrollmentEvent)
}

// EnrollRequest describes an enrollment attempt.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Semester  string `json:"semester" validate:"required"`
}

// SubmitGradeRequest describes a final grade submission.
type SubmitGradeRequest struct {
	Grade    string `json:"grade" validate:"required"`
	GraderID string `json:"grader_id" validate:"required"`
}

// EnrollmentService is the enrollment engine. It is the only writer of
// enrollment rows, Course.EnrolledCount and Student.SemesterCredits; every
// mutation of those runs inside one store transaction with fresh row reads.
type EnrollmentService struct {
	students    studentStore
	courses     courseStore
	enrollments enrollmentStore
	tx          txRunner
	cache       entityCache
	events      eventPublisher
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         config.EnrollmentConfig
	cacheTTL    config.CacheConfig
}

// NewEnrollmentService constructs the enrollment engine.
func NewEnrollmentService(
	students studentStore,
	courses courseStore,
	enrollments enrollmentStore,
	tx txRunner,
	cache entityCache,
	events eventPublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.EnrollmentConfig,
	cacheTTL config.CacheConfig,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSemesterCredits <= 0 {
		cfg.MaxSemesterCredits = rules.DefaultMaxSemesterCredits
	}
	return &EnrollmentService{
		students:    students,
		courses:     courses,
		enrollments: enrollments,
		tx:          tx,
		cache:       cache,
		events:      events,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		cacheTTL:    cacheTTL,
	}
}

var reasonErrors = map[rules.Reason]*appErrors.Error{
	rules.ReasonInactiveStudent:     appErrors.ErrInactiveStudent,
	rules.ReasonDuplicateEnrollment: appErrors.ErrDuplicateEnrollment,
	rules.ReasonPrerequisitesNotMet: appErrors.ErrPrerequisitesNotMet,
	rules.ReasonCourseFull:          appErrors.ErrCourseFull,
	rules.ReasonCreditLimitExceeded: appErrors.ErrCreditLimitExceeded,
}

// Enroll registers a student into a course for a semester.
//
// The cached reads in the first phase only fail fast; the commit decision is
// re-made inside the transaction against row-locked fresh reads, so two
// racing enrollments can never overfill a course.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, s.fail("enroll", err)
	}
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, s.fail("enroll", err)
	}
	completed, err := s.enrollments.CompletedByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, s.fail("enroll", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed courses"))
	}
	live, err := s.enrollments.ListLive(ctx, req.StudentID, req.CourseID, req.Semester)
	if err != nil {
		return nil, s.fail("enroll", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments"))
	}

	snapshot := rules.Snapshot{
		Student:          *student,
		Course:           course.Course,
		Semester:         req.Semester,
		Prerequisites:    course.Prerequisites,
		CompletedCourses: completed,
		LiveEnrollments:  live,
		MaxCredits:       s.cfg.MaxSemesterCredits,
	}
	if ok, reason := rules.Evaluate(snapshot); !ok {
		return nil, s.fail("enroll", appErrors.Clone(reasonErrors[reason], ""))
	}

	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		Semester:   req.Semester,
		Status:     models.EnrollmentStatusEnrolled,
		EnrolledAt: time.Now().UTC(),
	}

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		// Lock order is always course before student to keep concurrent
		// enroll/drop transactions deadlock-free.
		freshCourse, err := s.courses.FindByIDForUpdateTx(ctx, tx, req.CourseID)
		if err != nil {
			return storeErr(err, "course not found")
		}
		freshStudent, err := s.students.FindByIDForUpdateTx(ctx, tx, req.StudentID)
		if err != nil {
			return storeErr(err, "student not found")
		}

		liveCount, err := s.enrollments.CountLiveTx(ctx, tx, req.StudentID, req.CourseID, req.Semester)
		if err != nil {
			return err
		}
		if liveCount > 0 {
			return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		if !rules.HasCapacity(*freshCourse) {
			return appErrors.Clone(appErrors.ErrCourseFull, "")
		}
		if !rules.WithinCreditLimit(*freshStudent, *freshCourse, s.cfg.MaxSemesterCredits) {
			return appErrors.Clone(appErrors.ErrCreditLimitExceeded, "")
		}

		if err := s.enrollments.CreateTx(ctx, tx, enrollment); err != nil {
			if repository.IsUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
			}
			return err
		}
		if err := s.courses.AdjustEnrolledCountTx(ctx, tx, req.CourseID, 1); err != nil {
			return err
		}
		return s.students.AdjustCreditsTx(ctx, tx, req.StudentID, freshCourse.Credits)
	})
	if err != nil {
		return nil, s.fail("enroll", s.mapTxError(err, "enrollment failed"))
	}

	s.invalidate(ctx, req.StudentID, req.CourseID)
	s.events.Publish(ctx, models.EnrollmentEvent{
		Type:         models.EventEnrollmentCreated,
		EnrollmentID: enrollment.ID,
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		Semester:     req.Semester,
		OccurredAt:   time.Now().UTC(),
	})
	s.metrics.RecordEnrollmentOperation("enroll", "ok")

	detail, err := s.enrollments.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Drop marks an enrollment as dropped and returns the seat and credits.
//
// The status check before the transaction only fails fast. The guarded
// dropped-transition re-validates it against the locked row, so of two
// racing drops exactly one releases the seat and the credits.
func (s *EnrollmentService) Drop(ctx context.Context, enrollmentID string, requester models.Requester) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return s.fail("drop", storeErr(err, "enrollment not found"))
	}
	if !requester.IsAdmin() && requester.ID != enrollment.StudentID {
		// Deliberately no detail: the caller learns nothing about the target.
		return s.fail("drop", appErrors.ErrForbidden)
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return s.fail("drop", appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active"))
	}
	if deadline, ok := s.cfg.DropDeadlines[strings.ToUpper(enrollment.Semester)]; ok && time.Now().UTC().After(deadline) {
		return s.fail("drop", appErrors.Clone(appErrors.ErrDeadlinePassed, ""))
	}

	droppedAt := time.Now().UTC()
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		freshCourse, err := s.courses.FindByIDForUpdateTx(ctx, tx, enrollment.CourseID)
		if err != nil {
			return storeErr(err, "course not found")
		}
		if _, err := s.students.FindByIDForUpdateTx(ctx, tx, enrollment.StudentID); err != nil {
			return storeErr(err, "student not found")
		}
		if err := s.enrollments.MarkDroppedTx(ctx, tx, enrollmentID, droppedAt); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active")
			}
			return err
		}
		if err := s.courses.AdjustEnrolledCountTx(ctx, tx, enrollment.CourseID, -1); err != nil {
			return err
		}
		return s.students.AdjustCreditsTx(ctx, tx, enrollment.StudentID, -freshCourse.Credits)
	})
	if err != nil {
		return s.fail("drop", s.mapTxError(err, "drop failed"))
	}

	s.invalidate(ctx, enrollment.StudentID, enrollment.CourseID)
	s.events.Publish(ctx, models.EnrollmentEvent{
		Type:         models.EventEnrollmentDropped,
		EnrollmentID: enrollmentID,
		StudentID:    enrollment.StudentID,
		CourseID:     enrollment.CourseID,
		Semester:     enrollment.Semester,
		OccurredAt:   droppedAt,
	})
	s.metrics.RecordEnrollmentOperation("drop", "ok")
	return nil
}

// SubmitGrade finalises an enrollment with a letter grade and recomputes the
// student's GPA from the full completed set.
func (s *EnrollmentService) SubmitGrade(ctx context.Context, enrollmentID string, req SubmitGradeRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, s.fail("grade", storeErr(err, "enrollment not found"))
	}
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		return nil, s.fail("grade", storeErr(err, "course not found"))
	}
	if req.GraderID != course.GraderID {
		return nil, s.fail("grade", appErrors.ErrForbidden)
	}
	if !rules.ValidGrade(req.Grade) {
		return nil, s.fail("grade", appErrors.Clone(appErrors.ErrInvalidGrade, ""))
	}
	if enrollment.Status != models.EnrollmentStatusEnrolled {
		return nil, s.fail("grade", appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active"))
	}

	completedAt := time.Now().UTC()
	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		// The guarded transition refuses rows that left ENROLLED after the
		// check above, so a racing drop can never end up graded.
		if err := s.enrollments.MarkCompletedTx(ctx, tx, enrollmentID, req.Grade, completedAt); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active")
			}
			return err
		}
		// GPA is always recomputed from the whole completed set inside the
		// same transaction; it can never drift from the grade rows.
		completed, err := s.enrollments.CompletedByStudentTx(ctx, tx, enrollment.StudentID)
		if err != nil {
			return err
		}
		return s.students.UpdateGPATx(ctx, tx, enrollment.StudentID, rules.ComputeGPA(completed))
	})
	if err != nil {
		return nil, s.fail("grade", s.mapTxError(err, "grade submission failed"))
	}

	s.invalidate(ctx, enrollment.StudentID, enrollment.CourseID)
	s.events.Publish(ctx, models.EnrollmentEvent{
		Type:         models.EventEnrollmentGraded,
		EnrollmentID: enrollmentID,
		StudentID:    enrollment.StudentID,
		CourseID:     enrollment.CourseID,
		Semester:     enrollment.Semester,
		Grade:        req.Grade,
		OccurredAt:   completedAt,
	})
	s.metrics.RecordEnrollmentOperation("grade", "ok")

	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// loadStudent reads a student through the cache, falling back to the store.
func (s *EnrollmentService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	err := s.cache.GetOrCompute(ctx, studentKey(id), s.cacheTTL.StudentTTL, &student, func(ctx context.Context) (interface{}, error) {
		return s.students.FindByID(ctx, id)
	})
	if err != nil {
		return nil, storeErr(err, "student not found")
	}
	return &student, nil
}

// loadCourse reads a course with prerequisites through the cache.
func (s *EnrollmentService) loadCourse(ctx context.Context, id string) (*models.CourseDetail, error) {
	var detail models.CourseDetail
	err := s.cache.GetOrCompute(ctx, courseKey(id), s.cacheTTL.CourseTTL, &detail, func(ctx context.Context) (interface{}, error) {
		course, err := s.courses.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		prereqs, err := s.courses.Prerequisites(ctx, id)
		if err != nil {
			return nil, err
		}
		return models.CourseDetail{Course: *course, Prerequisites: prereqs}, nil
	})
	if err != nil {
		return nil, storeErr(err, "course not found")
	}
	return &detail, nil
}

// invalidate drops every cache entry an enrollment mutation touches. Failure
// after a successful commit only narrows the staleness window to the TTL, so
// it is logged inside the cache service and accepted here.
func (s *EnrollmentService) invalidate(ctx context.Context, studentID, courseID string) {
	_ = s.cache.Invalidate(ctx, enrollmentKeys(studentID, courseID)...)
}

func (s *EnrollmentService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// fail records the outcome metric before passing the error through.
func (s *EnrollmentService) fail(operation string, err error) error {
	appErr := appErrors.FromError(err)
	s.metrics.RecordEnrollmentOperation(operation, appErr.Code)
	return err
}

// mapTxError keeps typed domain errors intact and converts infrastructure
// failures to their generic retryable form.
func (s *EnrollmentService) mapTxError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	}
	s.logger.Error("transaction failed", zap.String("detail", message), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
}

// storeErr maps a missing row to NotFound and anything else to an internal error.
func storeErr(err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMessage)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
}
