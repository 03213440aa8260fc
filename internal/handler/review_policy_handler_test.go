package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/middleware"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
)

type reviewPolicyServiceMock struct {
	listResp  []models.ReviewSetting
	setResp   *models.ReviewSetting
	setErr    error
	lastReq   dto.SetReviewPolicyRequest
	setCalled bool
}

func (m *reviewPolicyServiceMock) List(ctx context.Context) ([]models.ReviewSetting, error) {
	return m.listResp, nil
}

func (m *reviewPolicyServiceMock) Set(ctx context.Context, req dto.SetReviewPolicyRequest, actor *models.JWTClaims) (*models.ReviewSetting, error) {
	m.setCalled = true
	m.lastReq = req
	return m.setResp, m.setErr
}

func TestReviewPolicyHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewPolicyServiceMock{
		listResp: []models.ReviewSetting{{Category: "seminar", AutoReview: true}},
	}
	handler := NewReviewPolicyHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/review-policies", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.ReviewSetting `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.True(t, envelope.Data[0].AutoReview)
}

func TestReviewPolicyHandlerSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewPolicyServiceMock{
		setResp: &models.ReviewSetting{Category: "case-log", AutoReview: true},
	}
	handler := NewReviewPolicyHandler(mockSvc)

	auto := true
	payload, _ := json.Marshal(dto.SetReviewPolicyRequest{Category: "case-log", AutoReview: &auto})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/review-policies", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD})

	handler.Set(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.setCalled)
	assert.Equal(t, "case-log", mockSvc.lastReq.Category)
}

func TestReviewPolicyHandlerSetForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewPolicyServiceMock{setErr: appErrors.ErrForbidden}
	handler := NewReviewPolicyHandler(mockSvc)

	auto := false
	payload, _ := json.Marshal(dto.SetReviewPolicyRequest{Category: "case-log", AutoReview: &auto})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/review-policies", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Set(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
