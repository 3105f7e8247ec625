// Package rules contains the pure enrollment eligibility checks. Functions
// here take immutable snapshots and touch no storage, so the same inputs
// always produce the same answer.
package rules

import "github.com/campusreg/enrollment-api/internal/models"

// DefaultMaxSemesterCredits bounds a student's load when no limit is configured.
const DefaultMaxSemesterCredits = 18

// Reason tags the first failed eligibility check.
type Reason string

// Rejection reasons, one per check, in evaluation order.
const (
	ReasonNone                Reason = ""
	ReasonInactiveStudent     Reason = "INACTIVE_STUDENT"
	ReasonDuplicateEnrollment Reason = "DUPLICATE_ENROLLMENT"
	ReasonPrerequisitesNotMet Reason = "PREREQUISITES_NOT_MET"
	ReasonCourseFull          Reason = "COURSE_FULL"
	ReasonCreditLimitExceeded Reason = "CREDIT_LIMIT_EXCEEDED"
)

// Snapshot is the immutable view of the entities an enroll decision needs.
type Snapshot struct {
	Student          models.Student
	Course           models.Course
	Semester         string
	Prerequisites    []string
	CompletedCourses []models.CompletedCourse
	LiveEnrollments  []models.Enrollment
	MaxCredits       int
}

// IsEligibleStatus reports whether the student account may enroll at all.
func IsEligibleStatus(student models.Student) bool {
	return student.Status == models.StudentStatusActive
}

// IsDuplicate reports whether a live enrollment already exists for the
// (student, course, semester) triple. Dropped enrollments do not count.
func IsDuplicate(studentID, courseID, semester string, enrollments []models.Enrollment) bool {
	for _, e := range enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Semester == semester && e.Status.Live() {
			return true
		}
	}
	return false
}

// PrerequisitesMet reports whether every prerequisite course appears in the
// student's completed set. An empty prerequisite list is vacuously satisfied.
func PrerequisitesMet(prerequisites []string, completed []models.CompletedCourse) bool {
	if len(prerequisites) == 0 {
		return true
	}
	done := make(map[string]struct{}, len(completed))
	for _, c := range completed {
		done[c.CourseID] = struct{}{}
	}
	for _, p := range prerequisites {
		if _, ok := done[p]; !ok {
			return false
		}
	}
	return true
}

// HasCapacity reports whether the course can take one more enrollment.
func HasCapacity(course models.Course) bool {
	return course.EnrolledCount < course.Capacity
}

// WithinCreditLimit reports whether adding the course keeps the student at or
// under the semester credit limit.
func WithinCreditLimit(student models.Student, course models.Course, maxCredits int) bool {
	if maxCredits <= 0 {
		maxCredits = DefaultMaxSemesterCredits
	}
	return student.SemesterCredits+course.Credits <= maxCredits
}

// Evaluate runs the five checks in their fixed order and short-circuits on
// the first failure, returning its reason.
func Evaluate(snap Snapshot) (bool, Reason) {
	if !IsEligibleStatus(snap.Student) {
		return false, ReasonInactiveStudent
	}
	if IsDuplicate(snap.Student.ID, snap.Course.ID, snap.Semester, snap.LiveEnrollments) {
		return false, ReasonDuplicateEnrollment
	}
	if !PrerequisitesMet(snap.Prerequisites, snap.CompletedCourses) {
		return false, ReasonPrerequisitesNotMet
	}
	if !HasCapacity(snap.Course) {
		return false, ReasonCourseFull
	}
	if !WithinCreditLimit(snap.Student, snap.Course, snap.MaxCredits) {
		return false, ReasonCreditLimitExceeded
	}
	return true, ReasonNone
}
