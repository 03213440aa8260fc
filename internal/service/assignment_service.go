package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
)

type assignmentStore interface {
	List(ctx context.Context, facultyID, studentID, semester string) ([]models.AssignmentDetail, error)
	ExistsExact(ctx context.Context, facultyID, studentID, semester string) (bool, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

type assignmentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type assignmentAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AssignmentService manages the faculty-student supervision directory.
// Assignments are created and removed only by the HOD.
type AssignmentService struct {
	repo      assignmentStore
	users     assignmentUserReader
	audit     assignmentAuditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentStore, users assignmentUserReader, audit assignmentAuditLogger, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, users: users, audit: audit, validator: validate, logger: logger}
}

// Create adds an assignment after checking both parties exist with the right
// roles.
func (s *AssignmentService) Create(ctx context.Context, req dto.CreateAssignmentRequest, actor *models.JWTClaims) (*models.Assignment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleHOD {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the HOD manages assignments")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	faculty, err := s.loadUser(ctx, req.FacultyID)
	if err != nil {
		return nil, err
	}
	if faculty.Role != models.RoleFaculty {
		return nil, appErrors.Clone(appErrors.ErrValidation, "facultyId does not reference a faculty user")
	}
	student, err := s.loadUser(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId does not reference a student user")
	}

	exists, err := s.repo.ExistsExact(ctx, req.FacultyID, req.StudentID, req.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment already exists for this semester")
	}

	assignment := &models.Assignment{
		FacultyID: req.FacultyID,
		StudentID: req.StudentID,
		Semester:  req.Semester,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.emitAudit(ctx, actor.UserID, assignment)
	return assignment, nil
}

// Delete removes an assignment. HOD only.
func (s *AssignmentService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleHOD {
		return appErrors.Clone(appErrors.ErrForbidden, "only the HOD manages assignments")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// List returns assignments visible to the caller: faculty see their own,
// students see who supervises them, HOD sees everything.
func (s *AssignmentService) List(ctx context.Context, query dto.AssignmentQuery, actor *models.JWTClaims) ([]models.AssignmentDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleHOD:
	case models.RoleFaculty:
		query.FacultyID = actor.UserID
	case models.RoleStudent:
		query.StudentID = actor.UserID
	default:
		return nil, appErrors.ErrForbidden
	}
	assignments, err := s.repo.List(ctx, query.FacultyID, query.StudentID, query.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

func (s *AssignmentService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found: "+id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *AssignmentService) emitAudit(ctx context.Context, actorID string, assignment *models.Assignment) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(assignment)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionAssignmentSet,
		Resource:   "assignments",
		ResourceID: &assignment.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "assignment-service",
	}); err != nil {
		s.logger.Warn("failed to persist assignment audit log", zap.Error(err))
	}
}
