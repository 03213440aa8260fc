package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/residency-logbook-api/internal/category"
	"github.com/noah-isme/residency-logbook-api/pkg/response"
)

// CategoryHandler exposes the category registry so clients can render entry
// forms without hardcoding the catalogue.
type CategoryHandler struct{}

// NewCategoryHandler creates a new handler.
func NewCategoryHandler() *CategoryHandler {
	return &CategoryHandler{}
}

// List godoc
// @Summary List registered categories
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, category.All(), nil)
}
