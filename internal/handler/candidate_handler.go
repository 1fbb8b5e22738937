package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vettedhq/sourcing-api/internal/models"
	"github.com/vettedhq/sourcing-api/internal/service"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
	"github.com/vettedhq/sourcing-api/pkg/response"
)

// CandidateHandler exposes the candidate pipeline endpoints.
type CandidateHandler struct {
	candidates *service.CandidateService
}

// NewCandidateHandler constructs handler.
func NewCandidateHandler(candidates *service.CandidateService) *CandidateHandler {
	return &CandidateHandler{candidates: candidates}
}

// ListByRequest godoc
// @Summary List candidates for a request
// @Tags Candidates
// @Produce json
// @Param id path string true "Request ID"
// @Param status query string false "Filter by status"
// @Param source query string false "Filter by source"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/candidates [get]
func (h *CandidateHandler) ListByRequest(c *gin.Context) {
	filter := models.CandidateFilter{
		RequestID: c.Param("id"),
		Status:    c.Query("status"),
		Source:    c.Query("source"),
	}
	candidates, err := h.candidates.ListByRequest(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// Add godoc
// @Summary Attach a candidate to a request
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.AddCandidateRequest true "Candidate payload"
// @Success 201 {object} response.Envelope
// @Router /requests/{id}/candidates [post]
func (h *CandidateHandler) Add(c *gin.Context) {
	var req service.AddCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.candidates.Add(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, candidate)
}

// Get godoc
// @Summary Get a candidate
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id} [get]
func (h *CandidateHandler) Get(c *gin.Context) {
	candidate, err := h.candidates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

type statusBody struct {
	Status models.CandidateStatus `json:"status"`
	Note   *string                `json:"note,omitempty"`
}

// SetStatus godoc
// @Summary Set a candidate's status
// @Description Lenient transition used by staff tooling: any known status is reachable.
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body statusBody true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/status [patch]
func (h *CandidateHandler) SetStatus(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.candidates.SetStatus(c.Request.Context(), c.Param("id"), body.Status, actorFromContext(c).ID, body.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// ProposeTransition godoc
// @Summary Advance a candidate along the pipeline
// @Description Guarded transition: only the forward path or rejection is allowed.
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body statusBody true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/transition [post]
func (h *CandidateHandler) ProposeTransition(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.candidates.ProposeTransition(c.Request.Context(), c.Param("id"), body.Status, actorFromContext(c).ID, body.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

type responsesBody struct {
	Responses []models.QualificationResponse `json:"responses"`
}

// SubmitResponses godoc
// @Summary Replace a candidate's qualification responses
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body responsesBody true "Responses payload"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/responses [put]
func (h *CandidateHandler) SubmitResponses(c *gin.Context) {
	var body responsesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.candidates.SubmitResponses(c.Request.Context(), c.Param("id"), body.Responses)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// AddInternalNote godoc
// @Summary Add an internal note to a candidate
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body service.NoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/notes [post]
func (h *CandidateHandler) AddInternalNote(c *gin.Context) {
	var req service.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.candidates.AddInternalNote(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// AddClientNote godoc
// @Summary Add a client-visible note to a candidate
// @Tags Candidates
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body service.NoteRequest true "Note payload"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/client-notes [post]
func (h *CandidateHandler) AddClientNote(c *gin.Context) {
	var req service.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	candidate, err := h.candidates.AddClientNote(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// MarkViewed godoc
// @Summary Record that a candidate profile was viewed
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/viewed [post]
func (h *CandidateHandler) MarkViewed(c *gin.Context) {
	candidate, err := h.candidates.MarkViewed(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidate, nil)
}

// Remove godoc
// @Summary Remove a candidate from its request
// @Tags Candidates
// @Param id path string true "Candidate ID"
// @Success 204
// @Router /candidates/{id} [delete]
func (h *CandidateHandler) Remove(c *gin.Context) {
	if err := h.candidates.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
