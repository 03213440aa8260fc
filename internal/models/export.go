package models

import "time"

// ExportFormat enumerates supported logbook export encodings.
type ExportFormat string

const (
	ExportFormatPDF ExportFormat = "PDF"
	ExportFormatCSV ExportFormat = "CSV"
)

// ExportStatus tracks the background job lifecycle.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "QUEUED"
	ExportStatusRunning   ExportStatus = "RUNNING"
	ExportStatusCompleted ExportStatus = "COMPLETED"
	ExportStatusFailed    ExportStatus = "FAILED"
)

// ExportJob describes one asynchronous logbook export request. Jobs are
// request-scoped artifacts kept in process memory; the rendered file lives on
// disk until cleanup.
type ExportJob struct {
	ID          string       `json:"id"`
	RequestedBy string       `json:"requestedBy"`
	StudentID   string       `json:"studentId"`
	Category    string       `json:"category,omitempty"`
	Format      ExportFormat `json:"format"`
	Status      ExportStatus `json:"status"`
	FilePath    string       `json:"-"`
	DownloadURL string       `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}
