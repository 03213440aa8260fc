package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
)

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type assignmentStoreStub struct {
	assignments map[string]*models.Assignment
	listCall    [3]string
}

func newAssignmentStoreStub() *assignmentStoreStub {
	return &assignmentStoreStub{assignments: make(map[string]*models.Assignment)}
}

func (s *assignmentStoreStub) List(ctx context.Context, facultyID, studentID, semester string) ([]models.AssignmentDetail, error) {
	s.listCall = [3]string{facultyID, studentID, semester}
	result := make([]models.AssignmentDetail, 0, len(s.assignments))
	for _, assignment := range s.assignments {
		result = append(result, models.AssignmentDetail{Assignment: *assignment})
	}
	return result, nil
}

func (s *assignmentStoreStub) ExistsExact(ctx context.Context, facultyID, studentID, semester string) (bool, error) {
	for _, assignment := range s.assignments {
		if assignment.FacultyID == facultyID && assignment.StudentID == studentID && assignment.Semester == semester {
			return true, nil
		}
	}
	return false, nil
}

func (s *assignmentStoreStub) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = "asg-1"
	copied := *assignment
	s.assignments[assignment.ID] = &copied
	return nil
}

func (s *assignmentStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.assignments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.assignments, id)
	return nil
}

type userReaderStub struct {
	users map[string]*models.User
}

func (s *userReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func newAssignmentFixture() (*AssignmentService, *assignmentStoreStub, *auditStub) {
	store := newAssignmentStoreStub()
	users := &userReaderStub{users: map[string]*models.User{
		"faculty-1": {ID: "faculty-1", Role: models.RoleFaculty},
		"student-1": {ID: "student-1", Role: models.RoleStudent},
	}}
	audit := &auditStub{}
	svc := NewAssignmentService(store, users, audit, nil, nil)
	return svc, store, audit
}

func TestAssignmentCreateHODOnly(t *testing.T) {
	svc, _, audit := newAssignmentFixture()
	req := dto.CreateAssignmentRequest{FacultyID: "faculty-1", StudentID: "student-1", Semester: "2026-1"}

	_, err := svc.Create(context.Background(), req, facultyClaims("faculty-1"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	assignment, err := svc.Create(context.Background(), req, hodClaims("hod-1"))
	require.NoError(t, err)
	require.NotEmpty(t, assignment.ID)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionAssignmentSet, audit.logs[0].Action)
}

func TestAssignmentCreateValidatesRolesAndDuplicates(t *testing.T) {
	svc, _, _ := newAssignmentFixture()

	_, err := svc.Create(context.Background(), dto.CreateAssignmentRequest{FacultyID: "student-1", StudentID: "student-1", Semester: "2026-1"}, hodClaims("hod-1"))
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req := dto.CreateAssignmentRequest{FacultyID: "faculty-1", StudentID: "student-1", Semester: "2026-1"}
	_, err = svc.Create(context.Background(), req, hodClaims("hod-1"))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req, hodClaims("hod-1"))
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAssignmentDelete(t *testing.T) {
	svc, store, _ := newAssignmentFixture()
	store.assignments["asg-1"] = &models.Assignment{ID: "asg-1", FacultyID: "faculty-1", StudentID: "student-1", Semester: "2026-1"}

	require.NoError(t, svc.Delete(context.Background(), "asg-1", hodClaims("hod-1")))

	err := svc.Delete(context.Background(), "asg-1", hodClaims("hod-1"))
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignmentListScopedByRole(t *testing.T) {
	svc, store, _ := newAssignmentFixture()

	_, err := svc.List(context.Background(), dto.AssignmentQuery{FacultyID: "faculty-9"}, facultyClaims("faculty-1"))
	require.NoError(t, err)
	require.Equal(t, "faculty-1", store.listCall[0], "faculty filter is pinned to the caller")

	_, err = svc.List(context.Background(), dto.AssignmentQuery{}, studentClaims("student-1"))
	require.NoError(t, err)
	require.Equal(t, "student-1", store.listCall[1])

	_, err = svc.List(context.Background(), dto.AssignmentQuery{FacultyID: "faculty-1", Semester: "2026-1"}, hodClaims("hod-1"))
	require.NoError(t, err)
	require.Equal(t, "faculty-1", store.listCall[0])
	require.Equal(t, "2026-1", store.listCall[2])
}
