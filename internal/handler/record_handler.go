package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
	"github.com/noah-isme/residency-logbook-api/pkg/response"
)

type lifecycleService interface {
	Create(ctx context.Context, req dto.CreateRecordRequest, actor *models.JWTClaims) (*models.Record, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Record, error)
	List(ctx context.Context, query dto.RecordQuery, actor *models.JWTClaims) ([]models.Record, error)
	Update(ctx context.Context, id string, req dto.UpdateRecordRequest, actor *models.JWTClaims) (*models.Record, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.Record, error)
	Sign(ctx context.Context, id string, req dto.ReviewActionRequest, actor *models.JWTClaims) (*models.Record, error)
	Reject(ctx context.Context, id string, req dto.ReviewActionRequest, actor *models.JWTClaims) (*models.Record, error)
	Signatures(ctx context.Context, id string, actor *models.JWTClaims) ([]models.Signature, error)
}

// RecordHandler wires the logbook lifecycle endpoints.
type RecordHandler struct {
	service lifecycleService
}

// NewRecordHandler creates a new handler.
func NewRecordHandler(svc lifecycleService) *RecordHandler {
	return &RecordHandler{service: svc}
}

// Create godoc
// @Summary Create logbook entry
// @Description Open a new draft entry; sequence number and tally are assigned server-side
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body dto.CreateRecordRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /records [post]
func (h *RecordHandler) Create(c *gin.Context) {
	var req dto.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}

	record, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// List godoc
// @Summary List logbook entries
// @Description List entries visible to the caller, filtered by category, sub-category and status
// @Tags Records
// @Produce json
// @Param ownerId query string false "Owner filter (reviewers only)"
// @Param category query string false "Category tag"
// @Param subCategory query string false "Sub-category"
// @Param status query string false "Comma-separated statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /records [get]
func (h *RecordHandler) List(c *gin.Context) {
	query := dto.RecordQuery{
		OwnerID:     c.Query("ownerId"),
		Category:    c.Query("category"),
		SubCategory: c.Query("subCategory"),
		Limit:       intQuery(c, "limit"),
		Offset:      intQuery(c, "offset"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				query.Status = append(query.Status, models.RecordStatus(part))
			}
		}
	}

	records, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// Get godoc
// @Summary Get logbook entry
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /records/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Update godoc
// @Summary Edit logbook entry
// @Description Replace the payload of a draft or revision entry
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.UpdateRecordRequest true "Updated payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /records/{id} [put]
func (h *RecordHandler) Update(c *gin.Context) {
	var req dto.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}

	record, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Delete draft entry
// @Tags Records
// @Param id path string true "Record ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /records/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Submit godoc
// @Summary Submit entry for review
// @Description Moves the entry into the review queue; auto-review categories are signed immediately
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /records/{id}/submit [post]
func (h *RecordHandler) Submit(c *gin.Context) {
	record, err := h.service.Submit(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Sign godoc
// @Summary Sign a submitted entry
// @Description Approves the entry and appends the signature ledger row
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.ReviewActionRequest false "Optional remark"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /records/{id}/sign [post]
func (h *RecordHandler) Sign(c *gin.Context) {
	var req dto.ReviewActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
			return
		}
	}

	record, err := h.service.Sign(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Reject godoc
// @Summary Send entry back for revision
// @Description Requires a remark so the student knows what to fix
// @Tags Records
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.ReviewActionRequest true "Remark"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /records/{id}/reject [post]
func (h *RecordHandler) Reject(c *gin.Context) {
	var req dto.ReviewActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	record, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Signatures godoc
// @Summary List signature ledger for an entry
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /records/{id}/signatures [get]
func (h *RecordHandler) Signatures(c *gin.Context) {
	signatures, err := h.service.Signatures(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, signatures, nil)
}

func intQuery(c *gin.Context, key string) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
