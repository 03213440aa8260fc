package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
	"github.com/noah-isme/residency-logbook-api/pkg/response"
)

type reviewPolicyService interface {
	List(ctx context.Context) ([]models.ReviewSetting, error)
	Set(ctx context.Context, req dto.SetReviewPolicyRequest, actor *models.JWTClaims) (*models.ReviewSetting, error)
}

// ReviewPolicyHandler wires the per-category auto-review toggle endpoints.
type ReviewPolicyHandler struct {
	service reviewPolicyService
}

// NewReviewPolicyHandler creates a new handler.
func NewReviewPolicyHandler(svc reviewPolicyService) *ReviewPolicyHandler {
	return &ReviewPolicyHandler{service: svc}
}

// List godoc
// @Summary List effective review policies
// @Description Returns the auto-review flag per category, stored overrides merged onto defaults
// @Tags Review Policy
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /review-policies [get]
func (h *ReviewPolicyHandler) List(c *gin.Context) {
	settings, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, settings, nil)
}

// Set godoc
// @Summary Toggle auto-review for a category
// @Tags Review Policy
// @Accept json
// @Produce json
// @Param payload body dto.SetReviewPolicyRequest true "Policy payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /review-policies [put]
func (h *ReviewPolicyHandler) Set(c *gin.Context) {
	var req dto.SetReviewPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid policy payload"))
		return
	}

	setting, err := h.service.Set(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, setting, nil)
}
