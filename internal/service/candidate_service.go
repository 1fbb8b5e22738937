package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vettedhq/sourcing-api/internal/models"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
)

type candidateRepository interface {
	FindByID(ctx context.Context, id string) (*models.ExpertCandidate, error)
	ListByRequest(ctx context.Context, filter models.CandidateFilter) ([]models.ExpertCandidate, error)
	Create(ctx context.Context, candidate *models.ExpertCandidate) error
	Update(ctx context.Context, candidate *models.ExpertCandidate) error
	UpdateWithRecount(ctx context.Context, candidate *models.ExpertCandidate) error
	Delete(ctx context.Context, id string) error
}

type candidateRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.ExpertRequest, error)
}

// AddCandidateRequest holds the payload for attaching a candidate to a
// request. Exactly one of ExpertID or ExternalProfile must be provided.
type AddCandidateRequest struct {
	ExpertID        *string                 `json:"expert_id,omitempty"`
	ExternalProfile *models.ExternalProfile `json:"external_profile,omitempty"`
	Source          models.CandidateSource  `json:"source"`
	InitialStatus   models.CandidateStatus  `json:"initial_status,omitempty"`
}

// NoteRequest is a note payload. The length cap is a presentation limit
// enforced here at the validation boundary, not in the pipeline itself.
type NoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// Actor identifies who performs a pipeline operation, as supplied by the
// auth collaborator (or the public-link sentinel).
type Actor struct {
	ID   string
	Name string
}

// CandidateService drives the sourcing pipeline: candidate creation, status
// transitions with audit history, qualification responses and notes.
type CandidateService struct {
	repo      candidateRepository
	requests  candidateRequestRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCandidateService constructs the candidate service.
func NewCandidateService(repo candidateRepository, requests candidateRequestRepository, validate *validator.Validate, logger *zap.Logger) *CandidateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidateService{repo: repo, requests: requests, validator: validate, logger: logger}
}

// Get returns one candidate by ID.
func (s *CandidateService) Get(ctx context.Context, id string) (*models.ExpertCandidate, error) {
	candidate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	return candidate, nil
}

// ListByRequest returns the candidates attached to one request.
func (s *CandidateService) ListByRequest(ctx context.Context, filter models.CandidateFilter) ([]models.ExpertCandidate, error) {
	if _, err := s.requests.FindByID(ctx, filter.RequestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	candidates, err := s.repo.ListByRequest(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}
	return candidates, nil
}

// Add attaches a new candidate to a request and seeds its status history.
// The parent request's candidate count is recomputed in the same
// transaction as the insert.
func (s *CandidateService) Add(ctx context.Context, requestID string, req AddCandidateRequest, actor Actor) (*models.ExpertCandidate, error) {
	if _, err := s.requests.FindByID(ctx, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	fields := map[string]string{}
	hasExpert := req.ExpertID != nil && *req.ExpertID != ""
	hasProfile := req.ExternalProfile != nil && strings.TrimSpace(req.ExternalProfile.Name) != ""
	if hasExpert == hasProfile {
		fields["identity"] = "exactly one of expert_id or external_profile.name must be provided"
	}
	if !req.Source.Known() {
		fields["source"] = fmt.Sprintf("unknown source %q", req.Source)
	}
	status := req.InitialStatus
	if status == "" {
		status = models.StatusIdentified
	}
	if !status.Known() {
		fields["initial_status"] = fmt.Sprintf("unknown status %q", status)
	}
	if len(fields) > 0 {
		return nil, appErrors.Validation("invalid candidate payload", fields)
	}

	now := time.Now().UTC()
	candidate := &models.ExpertCandidate{
		RequestID: requestID,
		Source:    req.Source,
		Status:    status,
		StatusHistory: models.StatusHistory{{
			Status:    status,
			ChangedBy: actor.ID,
			ChangedAt: now,
		}},
		QualificationResponses: models.ResponseList{},
		InternalNotes:          models.NoteList{},
		AddedByID:              actor.ID,
		AddedBy:                actor.Name,
	}
	if hasExpert {
		candidate.ExpertID = req.ExpertID
	} else {
		candidate.ExternalProfile = req.ExternalProfile
	}

	if err := s.repo.Create(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create candidate")
	}
	return candidate, nil
}

// SetStatus applies a lenient status transition: any known status is
// reachable from any other. A transition to the current status is a no-op
// and appends no history entry, keeping the audit trail meaningful.
func (s *CandidateService) SetStatus(ctx context.Context, id string, newStatus models.CandidateStatus, changedBy string, note *string) (*models.ExpertCandidate, error) {
	if !newStatus.Known() {
		return nil, appErrors.Validation("invalid status payload", map[string]string{
			"status": fmt.Sprintf("unknown status %q", newStatus),
		})
	}
	candidate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if candidate.Status == newStatus {
		return candidate, nil
	}
	return s.applyTransition(ctx, candidate, newStatus, changedBy, note)
}

// ProposeTransition is the guarded variant of SetStatus: the move must
// follow the happy-path table or target rejected. Staff tooling that wants
// free corrections uses SetStatus instead.
func (s *CandidateService) ProposeTransition(ctx context.Context, id string, newStatus models.CandidateStatus, changedBy string, note *string) (*models.ExpertCandidate, error) {
	if !newStatus.Known() {
		return nil, appErrors.Validation("invalid status payload", map[string]string{
			"status": fmt.Sprintf("unknown status %q", newStatus),
		})
	}
	candidate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if candidate.Status == newStatus {
		return candidate, nil
	}
	if newStatus != models.StatusRejected && !candidate.Status.CanAdvanceTo(newStatus) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move from %s to %s", candidate.Status, newStatus))
	}
	return s.applyTransition(ctx, candidate, newStatus, changedBy, note)
}

func (s *CandidateService) applyTransition(ctx context.Context, candidate *models.ExpertCandidate, newStatus models.CandidateStatus, changedBy string, note *string) (*models.ExpertCandidate, error) {
	now := time.Now().UTC()
	candidate.Status = newStatus
	candidate.StatusHistory = append(candidate.StatusHistory, models.StatusChange{
		Status:    newStatus,
		ChangedBy: changedBy,
		ChangedAt: now,
		Note:      note,
	})
	switch newStatus {
	case models.StatusContacted:
		// Re-contacting resets the clock.
		candidate.ContactedAt = &now
	case models.StatusInterested:
		candidate.RespondedAt = &now
	}

	if err := s.repo.UpdateWithRecount(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update candidate status")
	}
	return candidate, nil
}

// SubmitResponses replaces the candidate's qualification responses wholesale
// and marks the candidate as having responded. Responses are never merged.
func (s *CandidateService) SubmitResponses(ctx context.Context, id string, responses []models.QualificationResponse) (*models.ExpertCandidate, error) {
	candidate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	request, err := s.requests.FindByID(ctx, candidate.RequestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	normalized, err := ValidateResponses(request.Qualifications, responses, false)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	candidate.QualificationResponses = normalized
	candidate.RespondedAt = &now
	if err := s.repo.Update(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save responses")
	}
	return candidate, nil
}

// AddInternalNote appends a note visible to the requesting client's team.
func (s *CandidateService) AddInternalNote(ctx context.Context, id string, actor Actor, req NoteRequest) (*models.ExpertCandidate, error) {
	return s.addNote(ctx, id, actor, req, false)
}

// AddClientNote appends a note for the client audience.
func (s *CandidateService) AddClientNote(ctx context.Context, id string, actor Actor, req NoteRequest) (*models.ExpertCandidate, error) {
	return s.addNote(ctx, id, actor, req, true)
}

func (s *CandidateService) addNote(ctx context.Context, id string, actor Actor, req NoteRequest, client bool) (*models.ExpertCandidate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	candidate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	note := models.Note{
		AuthorID:  actor.ID,
		Author:    actor.Name,
		Note:      req.Note,
		CreatedAt: time.Now().UTC(),
	}
	if client {
		candidate.ClientNotes = append(candidate.ClientNotes, note)
	} else {
		candidate.InternalNotes = append(candidate.InternalNotes, note)
	}
	if err := s.repo.Update(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save note")
	}
	return candidate, nil
}

// MarkViewed records an explicit "viewed" action on the candidate.
func (s *CandidateService) MarkViewed(ctx context.Context, id string) (*models.ExpertCandidate, error) {
	candidate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	candidate.LastViewedAt = &now
	if err := s.repo.Update(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark candidate viewed")
	}
	return candidate, nil
}

// Remove hard-deletes a candidate. The parent request's counters are
// recomputed in the same transaction as the delete.
func (s *CandidateService) Remove(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove candidate")
	}
	return nil
}

// ValidateResponses checks responses against the request's qualification
// list and normalizes answer shapes. It is the single validation path shared
// by the authenticated submission and the public intake. When
// enforceRequired is set, every required qualification must carry a
// non-empty answer; the error names the first unanswered question.
func ValidateResponses(qualifications models.QualificationList, responses []models.QualificationResponse, enforceRequired bool) (models.ResponseList, error) {
	byID := make(map[string]models.Qualification, len(qualifications))
	for _, q := range qualifications {
		byID[q.ID] = q
	}

	normalized := make(models.ResponseList, 0, len(responses))
	answered := make(map[string]bool, len(responses))
	for i, resp := range responses {
		q, ok := byID[resp.QualificationID]
		if !ok {
			return nil, appErrors.Validation("invalid responses payload", map[string]string{
				fmt.Sprintf("responses[%d]", i): "references an unknown qualification",
			})
		}
		answer, empty, err := normalizeAnswer(q, resp.Answer)
		if err != nil {
			return nil, appErrors.Validation("invalid responses payload", map[string]string{
				fmt.Sprintf("responses[%d]", i): err.Error(),
			})
		}
		normalized = append(normalized, models.QualificationResponse{QualificationID: q.ID, Answer: answer})
		if !empty {
			answered[q.ID] = true
		}
	}

	if enforceRequired {
		for _, q := range qualifications {
			if q.Required && !answered[q.ID] {
				return nil, appErrors.Validation(
					fmt.Sprintf("please answer the required question: %s", q.Question), nil)
			}
		}
	}
	return normalized, nil
}

// normalizeAnswer coerces a decoded JSON answer into the shape the
// qualification type demands. Booleans are bools, multi-selects are string
// lists (possibly empty), everything else is a scalar string.
func normalizeAnswer(q models.Qualification, answer interface{}) (interface{}, bool, error) {
	switch q.Type {
	case models.QualificationTypeBoolean:
		b, ok := answer.(bool)
		if !ok {
			return nil, false, fmt.Errorf("answer for %q must be a boolean", q.Question)
		}
		return b, false, nil
	case models.QualificationTypeMultiSelect:
		items, err := toStringList(answer)
		if err != nil {
			return nil, false, fmt.Errorf("answer for %q must be a list of strings", q.Question)
		}
		return items, len(items) == 0, nil
	default:
		s, ok := answer.(string)
		if !ok {
			return nil, false, fmt.Errorf("answer for %q must be a string", q.Question)
		}
		if q.Type == models.QualificationTypeSingleSelect && s != "" && !containsOption(q.Options, s) {
			return nil, false, fmt.Errorf("answer for %q is not one of the options", q.Question)
		}
		return s, strings.TrimSpace(s) == "", nil
	}
}

func toStringList(answer interface{}) ([]string, error) {
	switch v := answer.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string item")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a list")
	}
}

func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}
