package rules

import (
	"math"

	"github.com/campusreg/enrollment-api/internal/models"
)

// gradePoints is the closed letter-grade set on a 4.0 scale.
var gradePoints = map[string]float64{
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"F":  0.0,
}

// ValidGrade reports whether the grade belongs to the accepted letter set.
func ValidGrade(grade string) bool {
	_, ok := gradePoints[grade]
	return ok
}

// GradePoints returns the point value for a letter grade.
func GradePoints(grade string) (float64, bool) {
	points, ok := gradePoints[grade]
	return points, ok
}

// ComputeGPA returns the credit-weighted grade-point average over the
// completed-course set, rounded to two decimals and clamped to [0, 4].
// It is always computed whole from the full set so repeated submissions can
// never drift the stored value.
func ComputeGPA(completed []models.CompletedCourse) float64 {
	var points float64
	var credits int
	for _, c := range completed {
		value, ok := gradePoints[c.Grade]
		if !ok || c.Credits <= 0 {
			continue
		}
		points += value * float64(c.Credits)
		credits += c.Credits
	}
	if credits == 0 {
		return 0
	}
	gpa := points / float64(credits)
	gpa = math.Round(gpa*100) / 100
	if gpa < 0 {
		return 0
	}
	if gpa > 4 {
		return 4
	}
	return gpa
}
