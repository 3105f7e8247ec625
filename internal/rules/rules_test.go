package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campusreg/enrollment-api/internal/models"
)

func activeStudent(credits int) models.Student {
	return models.Student{ID: "s1", Status: models.StudentStatusActive, SemesterCredits: credits}
}

func TestIsEligibleStatus(t *testing.T) {
	assert.True(t, IsEligibleStatus(models.Student{Status: models.StudentStatusActive}))
	assert.False(t, IsEligibleStatus(models.Student{Status: models.StudentStatusInactive}))
	assert.False(t, IsEligibleStatus(models.Student{Status: models.StudentStatusGraduated}))
	assert.False(t, IsEligibleStatus(models.Student{Status: models.StudentStatusSuspended}))
}

func TestIsDuplicate(t *testing.T) {
	enrollments := []models.Enrollment{
		{StudentID: "s1", CourseID: "c1", Semester: "2025-FALL", Status: models.EnrollmentStatusEnrolled},
		{StudentID: "s1", CourseID: "c2", Semester: "2025-FALL", Status: models.EnrollmentStatusDropped},
		{StudentID: "s1", CourseID: "c3", Semester: "2024-FALL", Status: models.EnrollmentStatusCompleted},
	}

	assert.True(t, IsDuplicate("s1", "c1", "2025-FALL", enrollments))
	assert.True(t, IsDuplicate("s1", "c3", "2024-FALL", enrollments))
	// A dropped enrollment does not block re-enrollment in the same semester.
	assert.False(t, IsDuplicate("s1", "c2", "2025-FALL", enrollments))
	assert.False(t, IsDuplicate("s1", "c1", "2026-SPRING", enrollments))
	assert.False(t, IsDuplicate("s2", "c1", "2025-FALL", enrollments))
}

func TestPrerequisitesMet(t *testing.T) {
	completed := []models.CompletedCourse{
		{CourseID: "cs101", Grade: "B"},
		{CourseID: "math201", Grade: "A"},
	}

	assert.True(t, PrerequisitesMet(nil, nil), "empty prerequisite set is vacuously true")
	assert.True(t, PrerequisitesMet([]string{"cs101"}, completed))
	assert.True(t, PrerequisitesMet([]string{"cs101", "math201"}, completed))
	assert.False(t, PrerequisitesMet([]string{"cs101"}, nil))
	assert.False(t, PrerequisitesMet([]string{"cs101", "phys101"}, completed))
}

func TestHasCapacity(t *testing.T) {
	assert.True(t, HasCapacity(models.Course{Capacity: 30, EnrolledCount: 29}))
	assert.False(t, HasCapacity(models.Course{Capacity: 30, EnrolledCount: 30}))
	assert.False(t, HasCapacity(models.Course{Capacity: 1, EnrolledCount: 1}))
	assert.True(t, HasCapacity(models.Course{Capacity: 1, EnrolledCount: 0}))
}

func TestWithinCreditLimit(t *testing.T) {
	course := models.Course{Credits: 3}

	assert.True(t, WithinCreditLimit(activeStudent(15), course, 18))
	assert.False(t, WithinCreditLimit(activeStudent(16), course, 18))
	// Zero falls back to the default limit of 18.
	assert.True(t, WithinCreditLimit(activeStudent(15), course, 0))
	assert.False(t, WithinCreditLimit(activeStudent(16), course, 0))
}

func TestEvaluateOrderAndShortCircuit(t *testing.T) {
	base := Snapshot{
		Student:  activeStudent(12),
		Course:   models.Course{ID: "c1", Credits: 3, Capacity: 30, EnrolledCount: 10},
		Semester: "2025-FALL",
	}

	ok, reason := Evaluate(base)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)

	inactive := base
	inactive.Student.Status = models.StudentStatusSuspended
	// Also full and duplicate, but the status check runs first.
	inactive.Course.EnrolledCount = 30
	inactive.LiveEnrollments = []models.Enrollment{{StudentID: "s1", CourseID: "c1", Semester: "2025-FALL", Status: models.EnrollmentStatusEnrolled}}
	_, reason = Evaluate(inactive)
	assert.Equal(t, ReasonInactiveStudent, reason)

	duplicate := base
	duplicate.LiveEnrollments = []models.Enrollment{{StudentID: "s1", CourseID: "c1", Semester: "2025-FALL", Status: models.EnrollmentStatusEnrolled}}
	duplicate.Course.EnrolledCount = 30
	_, reason = Evaluate(duplicate)
	assert.Equal(t, ReasonDuplicateEnrollment, reason)

	missingPrereq := base
	missingPrereq.Prerequisites = []string{"cs101"}
	missingPrereq.Course.EnrolledCount = 30
	_, reason = Evaluate(missingPrereq)
	assert.Equal(t, ReasonPrerequisitesNotMet, reason)

	full := base
	full.Course.EnrolledCount = 30
	full.Student.SemesterCredits = 17
	_, reason = Evaluate(full)
	assert.Equal(t, ReasonCourseFull, reason)

	overloaded := base
	overloaded.Student.SemesterCredits = 16
	_, reason = Evaluate(overloaded)
	assert.Equal(t, ReasonCreditLimitExceeded, reason)
}

func TestEvaluateFreshmanWithPrerequisites(t *testing.T) {
	snap := Snapshot{
		Student:       activeStudent(0),
		Course:        models.Course{ID: "cs201", Credits: 3, Capacity: 40},
		Semester:      "2025-FALL",
		Prerequisites: []string{"cs101"},
	}

	ok, reason := Evaluate(snap)
	assert.False(t, ok)
	assert.Equal(t, ReasonPrerequisitesNotMet, reason)
}

func TestEvaluateCreditLimitScenario(t *testing.T) {
	snap := Snapshot{
		Student:    activeStudent(16),
		Course:     models.Course{ID: "c1", Credits: 3, Capacity: 40},
		Semester:   "2025-FALL",
		MaxCredits: 18,
	}

	ok, reason := Evaluate(snap)
	assert.False(t, ok)
	assert.Equal(t, ReasonCreditLimitExceeded, reason)
}
