package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/residency-logbook-api/internal/service"
	"github.com/noah-isme/residency-logbook-api/pkg/response"
)

// SummaryHandler wires the progress summary endpoints.
type SummaryHandler struct {
	service *service.SummaryService
}

// NewSummaryHandler creates a new handler.
func NewSummaryHandler(svc *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{service: svc}
}

// Mine godoc
// @Summary Get own progress summary
// @Tags Summary
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /summary [get]
func (h *SummaryHandler) Mine(c *gin.Context) {
	summary, err := h.service.StudentSummary(c.Request.Context(), "", claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// ForStudent godoc
// @Summary Get a student's progress summary
// @Description Reviewers only see students within their scope
// @Tags Summary
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/summary [get]
func (h *SummaryHandler) ForStudent(c *gin.Context) {
	summary, err := h.service.StudentSummary(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}
