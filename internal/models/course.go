package models

import "time"

// Course represents an offered course with bounded capacity.
//
// EnrolledCount is owned by the enrollment engine: every change happens
// inside a store transaction together with the enrollment row it accounts
// for, so 0 <= EnrolledCount <= Capacity holds at all times.
type Course struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Title         string    `db:"title" json:"title"`
	Credits       int       `db:"credits" json:"credits"`
	Capacity      int       `db:"capacity" json:"capacity"`
	EnrolledCount int       `db:"enrolled_count" json:"enrolled_count"`
	GraderID      string    `db:"grader_id" json:"grader_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with its prerequisite course IDs.
type CourseDetail struct {
	Course
	Prerequisites []string `json:"prerequisites"`
}

// CourseFilter encapsulates allowed search parameters for listing courses.
type CourseFilter struct {
	Search    string
	Code      string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
