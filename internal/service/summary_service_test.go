package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
)

type progressReaderStub struct {
	progress []models.CategoryProgress
	tallies  map[string]map[string]int
}

func (s *progressReaderStub) CategoryProgress(ctx context.Context, ownerID string) ([]models.CategoryProgress, error) {
	return s.progress, nil
}

func (s *progressReaderStub) SubCategoryTallies(ctx context.Context, ownerID, cat string) (map[string]int, error) {
	return s.tallies[cat], nil
}

func TestSummaryAttachesSubTalliesForPartitionedCategories(t *testing.T) {
	now := time.Now()
	records := &progressReaderStub{
		progress: []models.CategoryProgress{
			{Category: "case-log", Total: 10, Signed: 6, Pending: 3, Drafts: 1, LastUpdated: &now},
			{Category: "seminar", Total: 2, Signed: 2},
		},
		tallies: map[string]map[string]int{
			"case-log": {"OPD": 4, "IPD": 6},
		},
	}
	assignments := &assignmentStub{byFaculty: map[string][]string{}}
	svc := NewSummaryService(records, assignments, nil, time.Minute, nil)

	summary, err := svc.StudentSummary(context.Background(), "", studentClaims("student-1"))
	require.NoError(t, err)
	require.Equal(t, "student-1", summary.StudentID)
	require.Len(t, summary.Categories, 2)
	require.Equal(t, map[string]int{"OPD": 4, "IPD": 6}, summary.Categories[0].SubTallies)
	require.Nil(t, summary.Categories[1].SubTallies, "unpartitioned categories carry no sub-tallies")
}

func TestSummaryVisibility(t *testing.T) {
	records := &progressReaderStub{}
	assignments := &assignmentStub{byFaculty: map[string][]string{"faculty-1": {"student-1"}}}
	svc := NewSummaryService(records, assignments, nil, time.Minute, nil)

	_, err := svc.StudentSummary(context.Background(), "student-2", studentClaims("student-1"))
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentSummary(context.Background(), "student-2", facultyClaims("faculty-1"))
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.StudentSummary(context.Background(), "student-1", facultyClaims("faculty-1"))
	require.NoError(t, err)

	_, err = svc.StudentSummary(context.Background(), "student-2", hodClaims("hod-1"))
	require.NoError(t, err)
}
