package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusreg/enrollment-api/internal/models"
	"github.com/campusreg/enrollment-api/pkg/config"
	appErrors "github.com/campusreg/enrollment-api/pkg/errors"
	"github.com/campusreg/enrollment-api/pkg/export"
)

type mockStudentReader struct {
	students map[string]models.Student
	listed   int
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentReader) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.listed++
	var out []models.Student
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentReader) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "new-student"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentReader) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

type mockCompletedReader struct {
	completed []models.CompletedCourse
}

func (m *mockCompletedReader) CompletedByStudent(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	return m.completed, nil
}

func newStudentService(students *mockStudentReader, completed *mockCompletedReader) *StudentService {
	return NewStudentService(
		students, completed, &passCache{},
		export.NewCSVExporter(), export.NewPDFExporter(),
		zap.NewNop(), config.CacheConfig{},
	)
}

func TestStudentServiceGet(t *testing.T) {
	students := &mockStudentReader{students: map[string]models.Student{
		"s1": {ID: "s1", FullName: "Ada", GPA: 3.5},
	}}
	svc := newStudentService(students, &mockCompletedReader{})

	student, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", student.FullName)

	_, err = svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceList(t *testing.T) {
	students := &mockStudentReader{students: map[string]models.Student{
		"s1": {ID: "s1"},
		"s2": {ID: "s2"},
	}}
	svc := newStudentService(students, &mockCompletedReader{})

	items, pagination, err := svc.List(context.Background(), models.StudentFilter{Page: 0, PageSize: 0})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
}

func TestStudentServiceCreate(t *testing.T) {
	students := &mockStudentReader{}
	cache := &passCache{}
	svc := NewStudentService(
		students, &mockCompletedReader{}, cache,
		export.NewCSVExporter(), export.NewPDFExporter(),
		zap.NewNop(), config.CacheConfig{},
	)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		FullName: "Grace", Email: "grace@example.edu", Department: "CS",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, models.StudentStatusActive, student.Status, "new accounts start active")

	require.Len(t, cache.invalidated, 1)
	assert.Contains(t, cache.invalidated[0], "students:list:*")
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := newStudentService(&mockStudentReader{}, &mockCompletedReader{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		FullName: "Grace", Email: "not-an-email", Department: "CS",
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdate(t *testing.T) {
	students := &mockStudentReader{students: map[string]models.Student{
		"s1": {ID: "s1", FullName: "Ada", Email: "ada@example.edu", Department: "CS", Status: models.StudentStatusActive},
	}}
	cache := &passCache{}
	svc := NewStudentService(
		students, &mockCompletedReader{}, cache,
		export.NewCSVExporter(), export.NewPDFExporter(),
		zap.NewNop(), config.CacheConfig{},
	)

	student, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{Status: models.StudentStatusSuspended})
	require.NoError(t, err)
	assert.Equal(t, models.StudentStatusSuspended, student.Status)
	assert.Equal(t, "Ada", student.FullName, "empty fields keep their stored value")
	assert.Equal(t, models.StudentStatusSuspended, students.students["s1"].Status)

	require.Len(t, cache.invalidated, 1)
	assert.Contains(t, cache.invalidated[0], "student:s1")
	assert.Contains(t, cache.invalidated[0], "students:list:*")
}

func TestStudentServiceUpdateUnknownStatus(t *testing.T) {
	students := &mockStudentReader{students: map[string]models.Student{
		"s1": {ID: "s1", Status: models.StudentStatusActive},
	}}
	svc := newStudentService(students, &mockCompletedReader{})

	_, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{Status: "EXPELLED"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StudentStatusActive, students.students["s1"].Status)
}

func TestStudentServiceUpdateNotFound(t *testing.T) {
	svc := newStudentService(&mockStudentReader{}, &mockCompletedReader{})

	_, err := svc.Update(context.Background(), "missing", UpdateStudentRequest{FullName: "Grace"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGPA(t *testing.T) {
	students := &mockStudentReader{students: map[string]models.Student{
		"s1": {ID: "s1", GPA: 3.47},
	}}
	svc := newStudentService(students, &mockCompletedReader{})

	result, err := svc.GPA(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", result.StudentID)
	assert.InDelta(t, 3.47, result.GPA, 0.001)
}

func TestStudentServiceTranscriptCSV(t *testing.T) {
	students := &mockStudentReader{students: map[string]models.Student{
		"s1": {ID: "s1", FullName: "Ada"},
	}}
	completed := &mockCompletedReader{completed: []models.CompletedCourse{
		{CourseCode: "CS101", Credits: 4, Grade: "A"},
		{CourseCode: "MA201", Credits: 3, Grade: "B+"},
	}}
	svc := newStudentService(students, completed)

	payload, contentType, filename, err := svc.Transcript(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "transcript-s1.csv", filename)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Course,Credits,Grade"))
	assert.Contains(t, body, "CS101,4,A")
	assert.Contains(t, body, "MA201,3,B+")
}

func TestStudentServiceTranscriptPDF(t *testing.T) {
	students := &mockStudentReader{students: map[string]models.Student{
		"s1": {ID: "s1", FullName: "Ada"},
	}}
	completed := &mockCompletedReader{completed: []models.CompletedCourse{
		{CourseCode: "CS101", Credits: 4, Grade: "A"},
	}}
	svc := newStudentService(students, completed)

	payload, contentType, filename, err := svc.Transcript(context.Background(), "s1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, "transcript-s1.pdf", filename)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestStudentServiceTranscriptUnknownFormat(t *testing.T) {
	students := &mockStudentReader{students: map[string]models.Student{"s1": {ID: "s1"}}}
	svc := newStudentService(students, &mockCompletedReader{})

	_, _, _, err := svc.Transcript(context.Background(), "s1", "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
