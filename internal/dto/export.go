package dto

// CreateExportRequest queues an asynchronous logbook export. StudentID
// defaults to the caller for student requests; reviewers must name a student
// within their scope.
type CreateExportRequest struct {
	StudentID string `json:"studentId"`
	Category  string `json:"category"`
	Format    string `json:"format" validate:"required,oneof=PDF CSV pdf csv"`
}
