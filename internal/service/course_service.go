package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusreg/enrollment-api/internal/models"
	"github.com/campusreg/enrollment-api/pkg/config"
	appErrors "github.com/campusreg/enrollment-api/pkg/errors"
)

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	Prerequisites(ctx context.Context, courseID string) ([]string, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
}

type courseEnrollmentReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

// CreateCourseRequest describes a new course offering.
type CreateCourseRequest struct {
	Code     string `json:"code" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Credits  int    `json:"credits" validate:"required,gt=0"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
	GraderID string `json:"grader_id" validate:"required"`
}

// CourseService serves course read paths through the cache plus the admin
// catalog writes.
type CourseService struct {
	courses     courseCatalog
	enrollments courseEnrollmentReader
	cache       entityCache
	validator   *validator.Validate
	logger      *zap.Logger
	cacheTTL    config.CacheConfig
}

// NewCourseService constructs CourseService.
func NewCourseService(courses courseCatalog, enrollments courseEnrollmentReader, cache entityCache, logger *zap.Logger, cacheTTL config.CacheConfig) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:     courses,
		enrollments: enrollments,
		cache:       cache,
		validator:   validator.New(),
		logger:      logger,
		cacheTTL:    cacheTTL,
	}
}

// Get returns a course with its prerequisites through the cache. The cache
// entry shares its key with the enrollment engine's pre-check read.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
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

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create adds a course to the catalog. Course codes are unique; the new
// course starts with an empty roster.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.courses.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateCourseCode, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}

	course := &models.Course{
		Code:     req.Code,
		Title:    req.Title,
		Credits:  req.Credits,
		Capacity: req.Capacity,
		GraderID: req.GraderID,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Enrollments returns a course's enrollments, cached per course.
func (s *CourseService) Enrollments(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	// Confirm the course exists so an unknown ID is a 404, not an empty list.
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	var enrollments []models.Enrollment
	err := s.cache.GetOrCompute(ctx, courseEnrollmentsKey(courseID), s.cacheTTL.ListTTL, &enrollments, func(ctx context.Context) (interface{}, error) {
		return s.enrollments.ListByCourse(ctx, courseID)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course enrollments")
	}
	return enrollments, nil
}
