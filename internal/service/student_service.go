package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusreg/enrollment-api/internal/models"
	"github.com/campusreg/enrollment-api/pkg/config"
	appErrors "github.com/campusreg/enrollment-api/pkg/errors"
	"github.com/campusreg/enrollment-api/pkg/export"
)

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

type completedCourseReader interface {
	CompletedByStudent(ctx context.Context, studentID string) ([]models.CompletedCourse, error)
}

type datasetExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfDatasetExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// studentListPage is the cached payload for student list views.
type studentListPage struct {
	Items []models.Student `json:"items"`
	Total int              `json:"total"`
}

// CreateStudentRequest describes a new student record.
type CreateStudentRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"required"`
}

// UpdateStudentRequest describes a partial update of a student's profile.
// Empty fields keep their stored value.
type UpdateStudentRequest struct {
	FullName   string               `json:"full_name"`
	Email      string               `json:"email" validate:"omitempty,email"`
	Department string               `json:"department"`
	Status     models.StudentStatus `json:"status"`
}

// StudentService serves student read paths (profile, paginated lists, GPA,
// transcript export) and the admin directory writes. Reads go cache-aside
// with TTL-bounded entries.
type StudentService struct {
	students  studentDirectory
	completed completedCourseReader
	cache     entityCache
	csv       datasetExporter
	pdf       pdfDatasetExporter
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  config.CacheConfig
}

// NewStudentService constructs StudentService.
func NewStudentService(students studentDirectory, completed completedCourseReader, cache entityCache, csv datasetExporter, pdf pdfDatasetExporter, logger *zap.Logger, cacheTTL config.CacheConfig) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		students:  students,
		completed: completed,
		cache:     cache,
		csv:       csv,
		pdf:       pdf,
		validator: validator.New(),
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// Get returns a student by ID through the cache.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	err := s.cache.GetOrCompute(ctx, studentKey(id), s.cacheTTL.StudentTTL, &student, func(ctx context.Context) (interface{}, error) {
		return s.students.FindByID(ctx, id)
	})
	if err != nil {
		return nil, storeErr(err, "student not found")
	}
	return &student, nil
}

// List returns students with pagination metadata, cached per filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	var page studentListPage
	err := s.cache.GetOrCompute(ctx, studentListKey(filter), s.cacheTTL.ListTTL, &page, func(ctx context.Context) (interface{}, error) {
		items, total, err := s.students.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return studentListPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	p := filter.Page
	if p < 1 {
		p = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return page.Items, &models.Pagination{Page: p, PageSize: size, TotalCount: page.Total}, nil
}

// Create registers a new student. New accounts always start ACTIVE; status
// changes go through Update.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		FullName:   req.FullName,
		Email:      req.Email,
		Department: req.Department,
		Status:     models.StudentStatusActive,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	_ = s.cache.Invalidate(ctx, studentListPattern)
	return student, nil
}

// Update applies a partial profile update. Suspending or deactivating a
// student here makes the enrollment engine refuse their next enroll attempt;
// existing enrollments are untouched.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "student not found")
	}
	if req.FullName != "" {
		student.FullName = req.FullName
	}
	if req.Email != "" {
		student.Email = req.Email
	}
	if req.Department != "" {
		student.Department = req.Department
	}
	if req.Status != "" {
		if !validStudentStatus(req.Status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
		}
		student.Status = req.Status
	}
	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	_ = s.cache.Invalidate(ctx, studentKey(id), studentListPattern)
	return student, nil
}

func validStudentStatus(status models.StudentStatus) bool {
	switch status {
	case models.StudentStatusActive, models.StudentStatusInactive,
		models.StudentStatusGraduated, models.StudentStatusSuspended:
		return true
	}
	return false
}

// GPA returns the student's stored grade-point average. The value is derived
// state, recomputed by the engine on every grade submission.
func (s *StudentService) GPA(ctx context.Context, id string) (*models.GPAResult, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.GPAResult{StudentID: student.ID, GPA: student.GPA}, nil
}

// Transcript renders the student's completed-course set as CSV or PDF.
func (s *StudentService) Transcript(ctx context.Context, id, format string) ([]byte, string, string, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	completed, err := s.completed.CompletedByStudent(ctx, id)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript")
	}

	dataset := export.Dataset{
		Headers: []string{"Course", "Credits", "Grade"},
		Rows:    make([]map[string]string, 0, len(completed)),
	}
	for _, c := range completed {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course":  c.CourseCode,
			"Credits": strconv.Itoa(c.Credits),
			"Grade":   c.Grade,
		})
	}

	switch format {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return payload, "text/csv", fmt.Sprintf("transcript-%s.csv", student.ID), nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Transcript %s", student.FullName))
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
		}
		return payload, "application/pdf", fmt.Sprintf("transcript-%s.pdf", student.ID), nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "unsupported transcript format")
	}
}
