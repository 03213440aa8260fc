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

type recordServiceMock struct {
	record     *models.Record
	records    []models.Record
	signatures []models.Signature
	err        error
	lastQuery  dto.RecordQuery
	lastReview dto.ReviewActionRequest
	lastID     string
	calls      []string
}

func (m *recordServiceMock) Create(ctx context.Context, req dto.CreateRecordRequest, actor *models.JWTClaims) (*models.Record, error) {
	m.calls = append(m.calls, "create")
	return m.record, m.err
}

func (m *recordServiceMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Record, error) {
	m.calls = append(m.calls, "get")
	m.lastID = id
	return m.record, m.err
}

func (m *recordServiceMock) List(ctx context.Context, query dto.RecordQuery, actor *models.JWTClaims) ([]models.Record, error) {
	m.calls = append(m.calls, "list")
	m.lastQuery = query
	return m.records, m.err
}

func (m *recordServiceMock) Update(ctx context.Context, id string, req dto.UpdateRecordRequest, actor *models.JWTClaims) (*models.Record, error) {
	m.calls = append(m.calls, "update")
	m.lastID = id
	return m.record, m.err
}

func (m *recordServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	m.calls = append(m.calls, "delete")
	m.lastID = id
	return m.err
}

func (m *recordServiceMock) Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.Record, error) {
	m.calls = append(m.calls, "submit")
	m.lastID = id
	return m.record, m.err
}

func (m *recordServiceMock) Sign(ctx context.Context, id string, req dto.ReviewActionRequest, actor *models.JWTClaims) (*models.Record, error) {
	m.calls = append(m.calls, "sign")
	m.lastID = id
	m.lastReview = req
	return m.record, m.err
}

func (m *recordServiceMock) Reject(ctx context.Context, id string, req dto.ReviewActionRequest, actor *models.JWTClaims) (*models.Record, error) {
	m.calls = append(m.calls, "reject")
	m.lastID = id
	m.lastReview = req
	return m.record, m.err
}

func (m *recordServiceMock) Signatures(ctx context.Context, id string, actor *models.JWTClaims) ([]models.Signature, error) {
	m.calls = append(m.calls, "signatures")
	m.lastID = id
	return m.signatures, m.err
}

func recordTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	return c, w
}

func TestRecordHandlerCreate(t *testing.T) {
	mockSvc := &recordServiceMock{
		record: &models.Record{ID: "rec-1", OwnerID: "student-1", Category: "case-log", SequenceNo: 1, Tally: 1, Status: models.RecordStatusDraft},
	}
	handler := NewRecordHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateRecordRequest{Category: "case-log", SubCategory: "OPD", Payload: json.RawMessage(`{"diagnosis":"x"}`)})
	c, w := recordTestContext(t, http.MethodPost, "/records", payload)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, mockSvc.calls, "create")

	var envelope struct {
		Data models.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "rec-1", envelope.Data.ID)
}

func TestRecordHandlerCreateInvalidBody(t *testing.T) {
	mockSvc := &recordServiceMock{}
	handler := NewRecordHandler(mockSvc)

	c, w := recordTestContext(t, http.MethodPost, "/records", []byte(`{"category":"case-log"`))

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.calls, "malformed JSON never reaches the service")
}

func TestRecordHandlerCreateServiceError(t *testing.T) {
	mockSvc := &recordServiceMock{err: appErrors.ErrConflict}
	handler := NewRecordHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateRecordRequest{Category: "case-log", Payload: json.RawMessage(`{}`)})
	c, w := recordTestContext(t, http.MethodPost, "/records", payload)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, appErrors.ErrConflict.Code, envelope.Error.Code)
}

func TestRecordHandlerListParsesQuery(t *testing.T) {
	mockSvc := &recordServiceMock{records: []models.Record{{ID: "rec-1"}}}
	handler := NewRecordHandler(mockSvc)

	c, w := recordTestContext(t, http.MethodGet, "/records?category=case-log&status=submitted,%20signed&limit=10&offset=20", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "case-log", mockSvc.lastQuery.Category)
	assert.Equal(t, []models.RecordStatus{models.RecordStatusSubmitted, models.RecordStatusSigned}, mockSvc.lastQuery.Status)
	assert.Equal(t, 10, mockSvc.lastQuery.Limit)
	assert.Equal(t, 20, mockSvc.lastQuery.Offset)
}

func TestRecordHandlerGetNotFound(t *testing.T) {
	mockSvc := &recordServiceMock{err: appErrors.ErrNotFound}
	handler := NewRecordHandler(mockSvc)

	c, w := recordTestContext(t, http.MethodGet, "/records/rec-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "rec-9"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "rec-9", mockSvc.lastID)
}

func TestRecordHandlerSignWithoutBody(t *testing.T) {
	mockSvc := &recordServiceMock{
		record: &models.Record{ID: "rec-1", Status: models.RecordStatusSigned},
	}
	handler := NewRecordHandler(mockSvc)

	c, w := recordTestContext(t, http.MethodPost, "/records/rec-1/sign", nil)
	c.Params = gin.Params{{Key: "id", Value: "rec-1"}}

	handler.Sign(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, mockSvc.calls, "sign")
	assert.Empty(t, mockSvc.lastReview.Remark)
}

func TestRecordHandlerSignWithRemark(t *testing.T) {
	mockSvc := &recordServiceMock{
		record: &models.Record{ID: "rec-1", Status: models.RecordStatusSigned},
	}
	handler := NewRecordHandler(mockSvc)

	payload, _ := json.Marshal(dto.ReviewActionRequest{Remark: "well documented"})
	c, w := recordTestContext(t, http.MethodPost, "/records/rec-1/sign", payload)
	c.Params = gin.Params{{Key: "id", Value: "rec-1"}}

	handler.Sign(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "well documented", mockSvc.lastReview.Remark)
}

func TestRecordHandlerRejectRequiresBody(t *testing.T) {
	mockSvc := &recordServiceMock{}
	handler := NewRecordHandler(mockSvc)

	c, w := recordTestContext(t, http.MethodPost, "/records/rec-1/reject", nil)
	c.Params = gin.Params{{Key: "id", Value: "rec-1"}}

	handler.Reject(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.calls)
}

func TestRecordHandlerDelete(t *testing.T) {
	mockSvc := &recordServiceMock{}
	handler := NewRecordHandler(mockSvc)

	c, w := recordTestContext(t, http.MethodDelete, "/records/rec-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "rec-1"}}

	handler.Delete(c)
	// c.Status defers writing the header; outside the engine the recorder
	// never sees it, so flush it the way gin does after the handler chain.
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "rec-1", mockSvc.lastID)
}
