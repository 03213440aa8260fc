package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
	"github.com/noah-isme/residency-logbook-api/pkg/storage"
)

type exportRecordsStub struct {
	records []models.Record
}

func (s *exportRecordsStub) List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	return s.records, nil
}

func newExportFixture(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	records := &exportRecordsStub{records: []models.Record{
		{ID: "rec-1", OwnerID: "student-1", Category: "case-log", SubCategory: "OPD", SequenceNo: 1, Tally: 1, Status: models.RecordStatusSigned, CreatedAt: time.Now()},
	}}
	assignments := &assignmentStub{byFaculty: map[string][]string{"faculty-1": {"student-1"}}}
	return NewExportService(records, assignments, store, signer, nil, nil, ExportServiceConfig{})
}

func TestExportCreateEnforcesScope(t *testing.T) {
	svc := newExportFixture(t)
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.Create(context.Background(), dto.CreateExportRequest{StudentID: "student-2", Format: "PDF"}, studentClaims("student-1"))
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateExportRequest{StudentID: "student-2", Format: "CSV"}, facultyClaims("faculty-1"))
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateExportRequest{Format: "XLSX"}, studentClaims("student-1"))
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	job, err := svc.Create(context.Background(), dto.CreateExportRequest{Format: "CSV"}, studentClaims("student-1"))
	require.NoError(t, err)
	require.Equal(t, "student-1", job.StudentID)
}

func TestExportStatusOnlyForRequester(t *testing.T) {
	svc := newExportFixture(t)
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Create(context.Background(), dto.CreateExportRequest{Format: "PDF"}, studentClaims("student-1"))
	require.NoError(t, err)

	_, err = svc.Status(context.Background(), job.ID, studentClaims("student-2"))
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Status(context.Background(), "no-such-job", studentClaims("student-1"))
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportDownloadRejectsBadTokens(t *testing.T) {
	svc := newExportFixture(t)

	_, err := svc.Download("not-a-token")
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestExportBuildDataset(t *testing.T) {
	remark := "good"
	data := buildDataset([]models.Record{
		{SequenceNo: 3, Category: "case-log", SubCategory: "OPD", Tally: 2, Status: models.RecordStatusSigned, ReviewerRemark: &remark, CreatedAt: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)},
	})
	require.Equal(t, []string{"Seq", "Category", "Sub-Category", "Tally", "Status", "Remark", "Created"}, data.Headers)
	require.Len(t, data.Rows, 1)
	require.Equal(t, "3", data.Rows[0]["Seq"])
	require.Equal(t, "good", data.Rows[0]["Remark"])
	require.Equal(t, "SIGNED", data.Rows[0]["Status"])
}
