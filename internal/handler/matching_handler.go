package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vettedhq/sourcing-api/internal/service"
	"github.com/vettedhq/sourcing-api/pkg/response"
)

// MatchingHandler exposes the rule-based expert matcher.
type MatchingHandler struct {
	matching *service.MatchingService
}

// NewMatchingHandler constructs handler.
func NewMatchingHandler(matching *service.MatchingService) *MatchingHandler {
	return &MatchingHandler{matching: matching}
}

// Match godoc
// @Summary Recommend catalog experts for a request
// @Tags Matching
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/match [post]
func (h *MatchingHandler) Match(c *gin.Context) {
	result, err := h.matching.Match(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
