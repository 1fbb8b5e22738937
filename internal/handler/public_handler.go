package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vettedhq/sourcing-api/internal/service"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
	"github.com/vettedhq/sourcing-api/pkg/response"
)

// PublicHandler exposes the unauthenticated opportunity surface.
type PublicHandler struct {
	public *service.PublicService
}

// NewPublicHandler constructs handler.
func NewPublicHandler(public *service.PublicService) *PublicHandler {
	return &PublicHandler{public: public}
}

// GetOpportunity godoc
// @Summary View a publicly shared opportunity
// @Tags Public
// @Produce json
// @Param slug path string true "Opportunity slug"
// @Success 200 {object} response.Envelope
// @Router /public/opportunities/{slug} [get]
func (h *PublicHandler) GetOpportunity(c *gin.Context) {
	view, err := h.public.GetView(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Apply godoc
// @Summary Apply to a publicly shared opportunity
// @Tags Public
// @Accept json
// @Produce json
// @Param slug path string true "Opportunity slug"
// @Param payload body service.PublicApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /public/opportunities/{slug}/apply [post]
func (h *PublicHandler) Apply(c *gin.Context) {
	var req service.PublicApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	var expertID *string
	if claims := claimsFromContext(c); claims != nil && claims.UserID != "" {
		expertID = &claims.UserID
	}
	candidate, err := h.public.Apply(c.Request.Context(), c.Param("slug"), req, expertID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, candidate)
}
