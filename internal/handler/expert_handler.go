package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vettedhq/sourcing-api/internal/models"
	"github.com/vettedhq/sourcing-api/internal/service"
	"github.com/vettedhq/sourcing-api/pkg/response"
)

// ExpertHandler exposes read-only expert catalog endpoints.
type ExpertHandler struct {
	experts *service.ExpertService
}

// NewExpertHandler constructs handler.
func NewExpertHandler(experts *service.ExpertService) *ExpertHandler {
	return &ExpertHandler{experts: experts}
}

// Search godoc
// @Summary Search the expert catalog
// @Tags Experts
// @Produce json
// @Param search query string false "Free text search"
// @Param category query string false "Filter by category"
// @Param verified query bool false "Filter by verified flag"
// @Param limit query int false "Max results"
// @Success 200 {object} response.Envelope
// @Router /experts [get]
func (h *ExpertHandler) Search(c *gin.Context) {
	filter := models.ExpertFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
	}
	if raw := c.Query("verified"); raw != "" {
		if verified, err := strconv.ParseBool(raw); err == nil {
			filter.Verified = &verified
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	experts, err := h.experts.Search(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, experts, nil)
}

// Get godoc
// @Summary Get a catalog expert
// @Tags Experts
// @Produce json
// @Param id path string true "Expert ID"
// @Success 200 {object} response.Envelope
// @Router /experts/{id} [get]
func (h *ExpertHandler) Get(c *gin.Context) {
	expert, err := h.experts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, expert, nil)
}
