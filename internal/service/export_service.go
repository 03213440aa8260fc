package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/residency-logbook-api/internal/category"
	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
	"github.com/noah-isme/residency-logbook-api/pkg/export"
	"github.com/noah-isme/residency-logbook-api/pkg/jobs"
	"github.com/noah-isme/residency-logbook-api/pkg/storage"
)

type exportRecordLister interface {
	List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error)
}

type exportAssignmentChecker interface {
	Exists(ctx context.Context, facultyID, studentID string) (bool, error)
}

// ExportService renders a student's logbook to PDF or CSV in the background
// and hands out signed download tokens for the result. Job state lives in
// process memory; the rendered files live on disk until cleanup.
type ExportService struct {
	records     exportRecordLister
	assignments exportAssignmentChecker
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	pdf         *export.PDFExporter
	csv         *export.CSVExporter
	queue       *jobs.Queue
	validator   *validator.Validate
	logger      *zap.Logger

	mu       sync.RWMutex
	jobsByID map[string]*models.ExportJob

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
}

// ExportServiceConfig bundles the tunables for the export pipeline.
type ExportServiceConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	CleanupInterval   time.Duration
}

// NewExportService constructs the service and its worker queue.
func NewExportService(records exportRecordLister, assignments exportAssignmentChecker, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	s := &ExportService{
		records:         records,
		assignments:     assignments,
		store:           store,
		signer:          signer,
		pdf:             export.NewPDFExporter(),
		csv:             export.NewCSVExporter(),
		validator:       validate,
		logger:          logger,
		jobsByID:        make(map[string]*models.ExportJob),
		cleanupInterval: cfg.CleanupInterval,
		cleanupStop:     make(chan struct{}),
	}
	s.queue = jobs.NewQueue("logbook-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker queue and the periodic file cleanup.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.cleanupLoop(ctx)
}

// Stop drains workers and halts cleanup.
func (s *ExportService) Stop() {
	close(s.cleanupStop)
	s.queue.Stop()
}

// Create queues a new export job for the caller.
func (s *ExportService) Create(ctx context.Context, req dto.CreateExportRequest, actor *models.JWTClaims) (*models.ExportJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	studentID := req.StudentID
	if studentID == "" {
		studentID = actor.UserID
	}
	if err := s.checkScope(ctx, studentID, actor); err != nil {
		return nil, err
	}
	if req.Category != "" {
		if _, ok := category.Lookup(req.Category); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category: %s", req.Category))
		}
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		RequestedBy: actor.UserID,
		StudentID:   studentID,
		Category:    strings.ToLower(req.Category),
		Format:      models.ExportFormat(strings.ToUpper(req.Format)),
		Status:      models.ExportStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobsByID[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "logbook.export", Payload: job.ID}); err != nil {
		s.mu.Lock()
		delete(s.jobsByID, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return s.snapshot(job.ID), nil
}

// Status returns the current state of a job. Only the requester may poll it.
func (s *ExportService) Status(ctx context.Context, jobID string, actor *models.JWTClaims) (*models.ExportJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job := s.snapshot(jobID)
	if job == nil || job.RequestedBy != actor.UserID {
		return nil, appErrors.ErrNotFound
	}
	return job, nil
}

// Download resolves a signed token to the stored file path.
func (s *ExportService) Download(token string) (string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	s.mu.RLock()
	job, ok := s.jobsByID[jobID]
	s.mu.RUnlock()
	if !ok || job.Status != models.ExportStatusCompleted || job.FilePath != relPath {
		return "", appErrors.ErrNotFound
	}
	path := s.store.Path(relPath)
	if _, err := os.Stat(path); err != nil {
		return "", appErrors.ErrNotFound
	}
	return path, nil
}

func (s *ExportService) process(ctx context.Context, queued jobs.Job) error {
	jobID, _ := queued.Payload.(string)
	s.setStatus(jobID, models.ExportStatusRunning, "")

	s.mu.RLock()
	job, ok := s.jobsByID[jobID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("export job %s vanished", jobID)
	}

	records, err := s.records.List(ctx, models.RecordFilter{
		OwnerID:  job.StudentID,
		Category: job.Category,
		Limit:    200,
	})
	if err != nil {
		s.setStatus(jobID, models.ExportStatusFailed, "failed to load records")
		return fmt.Errorf("load records for export %s: %w", jobID, err)
	}

	data := buildDataset(records)
	var rendered []byte
	var ext string
	switch job.Format {
	case models.ExportFormatCSV:
		rendered, err = s.csv.Render(data)
		ext = "csv"
	default:
		rendered, err = s.pdf.Render(data, fmt.Sprintf("Logbook %s", job.StudentID))
		ext = "pdf"
	}
	if err != nil {
		s.setStatus(jobID, models.ExportStatusFailed, "failed to render export")
		return fmt.Errorf("render export %s: %w", jobID, err)
	}

	relPath := fmt.Sprintf("%s/%s.%s", job.StudentID, jobID, ext)
	if _, err := s.store.Save(relPath, rendered); err != nil {
		s.setStatus(jobID, models.ExportStatusFailed, "failed to store export")
		return fmt.Errorf("store export %s: %w", jobID, err)
	}

	token, expiresAt, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		s.setStatus(jobID, models.ExportStatusFailed, "failed to sign download url")
		return fmt.Errorf("sign export %s: %w", jobID, err)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	job.Status = models.ExportStatusCompleted
	job.FilePath = relPath
	job.DownloadURL = fmt.Sprintf("/exports/download/%s", token)
	job.ExpiresAt = &expiresAt
	job.CompletedAt = &now
	s.mu.Unlock()

	s.logger.Info("export completed",
		zap.String("job_id", jobID),
		zap.String("student_id", job.StudentID),
		zap.String("format", string(job.Format)))
	return nil
}

func buildDataset(records []models.Record) export.Dataset {
	headers := []string{"Seq", "Category", "Sub-Category", "Tally", "Status", "Remark", "Created"}
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		remark := ""
		if record.ReviewerRemark != nil {
			remark = *record.ReviewerRemark
		}
		rows = append(rows, map[string]string{
			"Seq":          fmt.Sprintf("%d", record.SequenceNo),
			"Category":     record.Category,
			"Sub-Category": record.SubCategory,
			"Tally":        fmt.Sprintf("%d", record.Tally),
			"Status":       string(record.Status),
			"Remark":       remark,
			"Created":      record.CreatedAt.Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// Exports mirror record visibility: students export themselves, faculty their
// assigned students, HOD anyone.
func (s *ExportService) checkScope(ctx context.Context, studentID string, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleHOD:
		return nil
	case models.RoleStudent:
		if studentID != actor.UserID {
			return appErrors.ErrNotFound
		}
		return nil
	case models.RoleFaculty:
		assigned, err := s.assignments.Exists(ctx, actor.UserID, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
		}
		if !assigned {
			return appErrors.ErrNotFound
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}

func (s *ExportService) setStatus(jobID string, status models.ExportStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobsByID[jobID]; ok {
		job.Status = status
		job.Error = errMsg
	}
}

func (s *ExportService) snapshot(jobID string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobsByID[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func (s *ExportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.cleanupStop:
			return
		case <-ticker.C:
			deleted, err := s.store.CleanupOlderThan(s.cleanupInterval * 24)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("cleaned up expired exports", zap.Int("count", len(deleted)))
			}
		}
	}
}
