package dto

// CreateAssignmentRequest assigns a faculty reviewer to a student for one
// semester. HOD only.
type CreateAssignmentRequest struct {
	FacultyID string `json:"facultyId" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
	Semester  string `json:"semester" validate:"required"`
}

// AssignmentQuery filters assignment listings.
type AssignmentQuery struct {
	FacultyID string
	StudentID string
	Semester  string
}
