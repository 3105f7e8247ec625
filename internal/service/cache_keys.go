package service

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/campusreg/enrollment-api/internal/models"
)

// Cache key scheme used by the enrollment engine and the read services. Any
// enrollment mutation for student S and course C invalidates StudentKey(S),
// CourseKey(C), CourseEnrollmentsKey(C) and the whole student-list family,
// because list views embed enrollment-derived fields.
const studentListPattern = "students:list:*"

func studentKey(id string) string {
	return fmt.Sprintf("student:%s", id)
}

func courseKey(id string) string {
	return fmt.Sprintf("course:%s", id)
}

func courseEnrollmentsKey(id string) string {
	return fmt.Sprintf("course:%s:enrollments", id)
}

func studentListKey(filter models.StudentFilter) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%d|%s|%s",
		filter.Search, filter.Department, filter.Status,
		filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("students:list:%s", hex.EncodeToString(sum[:]))
}

func enrollmentKeys(studentID, courseID string) []string {
	return []string{
		studentKey(studentID),
		courseKey(courseID),
		courseEnrollmentsKey(courseID),
		studentListPattern,
	}
}
