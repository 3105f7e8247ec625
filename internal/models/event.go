package models

import "time"

// EnrollmentEventType labels the outbound events published after commit.
type EnrollmentEventType string

// Event types emitted by the enrollment engine.
const (
	EventEnrollmentCreated EnrollmentEventType = "enrollment.created"
	EventEnrollmentDropped EnrollmentEventType = "enrollment.dropped"
	EventEnrollmentGraded  EnrollmentEventType = "enrollment.graded"
)

// EnrollmentEvent is the payload delivered to the notification hook. It is
// published after the transaction commits; subscribers can fail without
// affecting the already-committed enrollment.
type EnrollmentEvent struct {
	Type         EnrollmentEventType `json:"type"`
	EnrollmentID string              `json:"enrollment_id"`
	StudentID    string              `json:"student_id"`
	CourseID     string              `json:"course_id"`
	Semester     string              `json:"semester"`
	Grade        string              `json:"grade,omitempty"`
	OccurredAt   time.Time           `json:"occurred_at"`
}
