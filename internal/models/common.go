package models

// Pagination carries list metadata for paginated responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// GPAResult is the response payload for the GPA endpoint.
type GPAResult struct {
	StudentID string  `json:"student_id"`
	GPA       float64 `json:"gpa"`
}
