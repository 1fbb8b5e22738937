package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vettedhq/sourcing-api/internal/models"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
)

const (
	minTitleLen       = 10
	minDescriptionLen = 50
	maxSlugLen        = 60
)

type requestRepository interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.ExpertRequest, error)
	FindByID(ctx context.Context, id string) (*models.ExpertRequest, error)
	FindBySlug(ctx context.Context, slug string) (*models.ExpertRequest, error)
	Create(ctx context.Context, request *models.ExpertRequest) error
	Update(ctx context.Context, request *models.ExpertRequest) error
	Delete(ctx context.Context, id string) error
}

type statsRepository interface {
	CountsByStatus(ctx context.Context, requestID string) (map[string]int, error)
}

// CreateRequestRequest holds the payload for creating expert requests.
type CreateRequestRequest struct {
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Agency            *string                `json:"agency,omitempty"`
	ContractType      *string                `json:"contract_type,omitempty"`
	NAICSCode         *string                `json:"naics_code,omitempty"`
	Deadline          *time.Time             `json:"deadline,omitempty"`
	RequiredExpertise []string               `json:"required_expertise"`
	ClearanceRequired *models.ClearanceLevel `json:"clearance_required,omitempty"`
	Qualifications    []models.Qualification `json:"qualifications"`
	State             models.RequestState    `json:"state,omitempty"`
	IsPublic          bool                   `json:"is_public"`
}

// UpdateRequestRequest holds mutable content fields.
type UpdateRequestRequest struct {
	Title             *string                `json:"title,omitempty"`
	Description       *string                `json:"description,omitempty"`
	Agency            *string                `json:"agency,omitempty"`
	ContractType      *string                `json:"contract_type,omitempty"`
	NAICSCode         *string                `json:"naics_code,omitempty"`
	Deadline          *time.Time             `json:"deadline,omitempty"`
	RequiredExpertise []string               `json:"required_expertise,omitempty"`
	ClearanceRequired *models.ClearanceLevel `json:"clearance_required,omitempty"`
	Qualifications    []models.Qualification `json:"qualifications,omitempty"`
}

// RequestService handles the expert request lifecycle.
type RequestService struct {
	repo      requestRepository
	stats     statsRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs the request service.
func NewRequestService(repo requestRepository, stats statsRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{repo: repo, stats: stats, cache: cache, validator: validate, logger: logger}
}

// List returns requests matching the filter.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.ExpertRequest, error) {
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// Get returns one request by ID.
func (s *RequestService) Get(ctx context.Context, id string) (*models.ExpertRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// Create registers a new expert request. Validation failures are reported
// per field before any mutation.
func (s *RequestService) Create(ctx context.Context, actor models.UserSnapshot, req CreateRequestRequest) (*models.ExpertRequest, error) {
	state := req.State
	if state == "" {
		state = models.RequestStateDraft
	}

	fields := map[string]string{}
	if len(strings.TrimSpace(req.Title)) < minTitleLen {
		fields["title"] = fmt.Sprintf("title must be at least %d characters", minTitleLen)
	}
	if len(strings.TrimSpace(req.Description)) < minDescriptionLen {
		fields["description"] = fmt.Sprintf("description must be at least %d characters", minDescriptionLen)
	}
	switch state {
	case models.RequestStateDraft, models.RequestStateOpen:
	default:
		fields["state"] = "state must be draft or open at creation"
	}
	if state == models.RequestStateOpen && len(req.RequiredExpertise) == 0 {
		fields["required_expertise"] = "at least one expertise tag is required to open a request"
	}
	if req.ClearanceRequired != nil && req.ClearanceRequired.Tier() < 0 {
		fields["clearance_required"] = "unknown clearance level"
	}
	validateQualifications(req.Qualifications, fields)
	if len(fields) > 0 {
		return nil, appErrors.Validation("invalid request payload", fields)
	}

	id := uuid.NewString()
	request := &models.ExpertRequest{
		ID:                id,
		Slug:              buildSlug(req.Title, id),
		CreatedByID:       actor.ID,
		CreatedBy:         actor,
		Title:             strings.TrimSpace(req.Title),
		Description:       strings.TrimSpace(req.Description),
		Agency:            req.Agency,
		ContractType:      req.ContractType,
		NAICSCode:         req.NAICSCode,
		Deadline:          req.Deadline,
		RequiredExpertise: models.StringList(req.RequiredExpertise),
		ClearanceRequired: req.ClearanceRequired,
		Qualifications:    assignQualificationIDs(req.Qualifications),
		State:             state,
		IsPublic:          req.IsPublic,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	return request, nil
}

// Update modifies content fields of a draft or open request.
func (s *RequestService) Update(ctx context.Context, id string, req UpdateRequestRequest) (*models.ExpertRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.State == models.RequestStateClosed {
		return nil, appErrors.Clone(appErrors.ErrRequestClosed, "closed requests cannot be edited")
	}

	fields := map[string]string{}
	if req.Title != nil {
		if len(strings.TrimSpace(*req.Title)) < minTitleLen {
			fields["title"] = fmt.Sprintf("title must be at least %d characters", minTitleLen)
		} else {
			request.Title = strings.TrimSpace(*req.Title)
		}
	}
	if req.Description != nil {
		if len(strings.TrimSpace(*req.Description)) < minDescriptionLen {
			fields["description"] = fmt.Sprintf("description must be at least %d characters", minDescriptionLen)
		} else {
			request.Description = strings.TrimSpace(*req.Description)
		}
	}
	if req.Qualifications != nil {
		validateQualifications(req.Qualifications, fields)
	}
	if len(fields) > 0 {
		return nil, appErrors.Validation("invalid request payload", fields)
	}

	if req.Agency != nil {
		request.Agency = req.Agency
	}
	if req.ContractType != nil {
		request.ContractType = req.ContractType
	}
	if req.NAICSCode != nil {
		request.NAICSCode = req.NAICSCode
	}
	if req.Deadline != nil {
		request.Deadline = req.Deadline
	}
	if req.RequiredExpertise != nil {
		request.RequiredExpertise = models.StringList(req.RequiredExpertise)
	}
	if req.ClearanceRequired != nil {
		request.ClearanceRequired = req.ClearanceRequired
	}
	if req.Qualifications != nil {
		request.Qualifications = assignQualificationIDs(req.Qualifications)
	}

	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	s.invalidatePublicView(ctx, request.Slug)
	return request, nil
}

// Open transitions a draft request to open.
func (s *RequestService) Open(ctx context.Context, id string) (*models.ExpertRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.State != models.RequestStateDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only draft requests can be opened")
	}
	if len(request.RequiredExpertise) == 0 {
		return nil, appErrors.Validation("invalid request payload", map[string]string{
			"required_expertise": "at least one expertise tag is required to open a request",
		})
	}
	request.State = models.RequestStateOpen
	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open request")
	}
	s.invalidatePublicView(ctx, request.Slug)
	return request, nil
}

// Close transitions an open request to closed. Candidates are untouched.
func (s *RequestService) Close(ctx context.Context, id string, reason *string) (*models.ExpertRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.State != models.RequestStateOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only open requests can be closed")
	}
	request.State = models.RequestStateClosed
	request.CloseReason = reason
	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close request")
	}
	s.invalidatePublicView(ctx, request.Slug)
	return request, nil
}

// SetPublic toggles the public application link.
func (s *RequestService) SetPublic(ctx context.Context, id string, public bool) (*models.ExpertRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	request.IsPublic = public
	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request visibility")
	}
	s.invalidatePublicView(ctx, request.Slug)
	return request, nil
}

// Delete removes the request and cascades to its candidates.
func (s *RequestService) Delete(ctx context.Context, id string) error {
	request, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	s.invalidatePublicView(ctx, request.Slug)
	return nil
}

// Stats returns the per-status candidate funnel for one request.
func (s *RequestService) Stats(ctx context.Context, id string) (*models.RequestStats, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.stats.CountsByStatus(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute request stats")
	}
	return &models.RequestStats{
		RequestID:      request.ID,
		CandidateCount: request.CandidateCount,
		MatchedCount:   request.MatchedCount,
		ByStatus:       counts,
	}, nil
}

func (s *RequestService) invalidatePublicView(ctx context.Context, slug string) {
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, "public:view:"+slug)
	}
}

var slugStrip = regexp.MustCompile(`[^a-z0-9 ]+`)

// buildSlug derives the public identifier from the title plus an ID fragment
// for global uniqueness.
func buildSlug(title, id string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = strings.Join(strings.Fields(slug), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}

// assignQualificationIDs gives every qualification lacking an ID a unique one.
func assignQualificationIDs(qualifications []models.Qualification) models.QualificationList {
	out := make(models.QualificationList, len(qualifications))
	for i, q := range qualifications {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		out[i] = q
	}
	return out
}

func validateQualifications(qualifications []models.Qualification, fields map[string]string) {
	for i, q := range qualifications {
		key := fmt.Sprintf("qualifications[%d]", i)
		if strings.TrimSpace(q.Question) == "" {
			fields[key] = "question text is required"
			continue
		}
		if !q.Type.Known() {
			fields[key] = fmt.Sprintf("unknown qualification type %q", q.Type)
			continue
		}
		if q.Type.IsSelect() && len(q.Options) < 2 {
			fields[key] = "select qualifications need at least two options"
			continue
		}
		if !q.Type.IsSelect() && len(q.Options) > 0 {
			fields[key] = "options are only allowed on select qualifications"
		}
	}
}
