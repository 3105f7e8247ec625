package models

import "time"

// StudentStatus represents the account state of a student.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
	StudentStatusSuspended StudentStatus = "SUSPENDED"
)

// Student represents a learner registered in the institution.
//
// SemesterCredits is maintained exclusively by the enrollment engine inside
// store transactions and always equals the sum of credits of the student's
// enrolled courses for the current semester. GPA is recomputed from all
// completed enrollments on every grade submission, never patched in place.
type Student struct {
	ID              string        `db:"id" json:"id"`
	FullName        string        `db:"full_name" json:"full_name"`
	Email           string        `db:"email" json:"email"`
	Department      string        `db:"department" json:"department"`
	Status          StudentStatus `db:"status" json:"status"`
	SemesterCredits int           `db:"semester_credits" json:"semester_credits"`
	GPA             float64       `db:"gpa" json:"gpa"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// CompletedCourse is one entry of a student's completed-course set: a course
// finished with a final grade. The set is derived from completed enrollments
// and only ever grows.
type CompletedCourse struct {
	CourseID   string `db:"course_id" json:"course_id"`
	CourseCode string `db:"course_code" json:"course_code"`
	Credits    int    `db:"credits" json:"credits"`
	Grade      string `db:"grade" json:"grade"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	Department string
	Status     StudentStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
