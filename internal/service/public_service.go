package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vettedhq/sourcing-api/internal/models"
	"github.com/vettedhq/sourcing-api/pkg/config"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
)

type publicRequestRepository interface {
	FindBySlug(ctx context.Context, slug string) (*models.ExpertRequest, error)
}

type publicCandidateRepository interface {
	Create(ctx context.Context, candidate *models.ExpertCandidate) error
}

// PublicApplicationRequest is the unauthenticated application form. The
// contact fields describe the applicant when no platform account is linked.
type PublicApplicationRequest struct {
	Name        string                         `json:"name"`
	Email       string                         `json:"email" validate:"omitempty,email"`
	LinkedInURL string                         `json:"linkedin_url" validate:"omitempty,url"`
	Headline    string                         `json:"headline" validate:"omitempty,max=200"`
	Responses   []models.QualificationResponse `json:"responses"`
}

// PublicService serves the unauthenticated opportunity page and its
// application intake. Whether a slug is unknown, the request is not shared
// publicly, or (when configured) the request is not open, the caller sees the
// same generic not-found answer, so the public surface leaks nothing about
// internal state.
type PublicService struct {
	requests   publicRequestRepository
	candidates publicCandidateRepository
	cache      *CacheService
	cfg        config.PublicIntakeConfig
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewPublicService constructs the public intake service.
func NewPublicService(requests publicRequestRepository, candidates publicCandidateRepository, cache *CacheService, cfg config.PublicIntakeConfig, validate *validator.Validate, logger *zap.Logger) *PublicService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicService{
		requests:   requests,
		candidates: candidates,
		cache:      cache,
		cfg:        cfg,
		validator:  validate,
		logger:     logger,
	}
}

func publicViewCacheKey(slug string) string {
	return "public:view:" + slug
}

var errOpportunityUnavailable = appErrors.Clone(appErrors.ErrNotFound, "opportunity unavailable")

// GetView returns the sanitized public projection for a shared request slug.
func (s *PublicService) GetView(ctx context.Context, slug string) (*models.PublicRequestView, error) {
	if !s.cfg.Enabled {
		return nil, errOpportunityUnavailable
	}

	if s.cache.Enabled() {
		var cached models.PublicRequestView
		if hit, _ := s.cache.Get(ctx, publicViewCacheKey(slug), &cached); hit {
			return &cached, nil
		}
	}

	request, err := s.visibleRequest(ctx, slug)
	if err != nil {
		return nil, err
	}
	view := request.PublicView()

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, publicViewCacheKey(slug), view, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache public view", zap.String("slug", slug), zap.Error(err))
		}
	}
	return &view, nil
}

// Apply records an application from the public opportunity page. When the
// applicant carries a platform identity the candidate links to their expert
// profile; otherwise an external profile is built from the form. The audit
// trail records the public-link sentinel, not a user.
func (s *PublicService) Apply(ctx context.Context, slug string, req PublicApplicationRequest, expertID *string) (*models.ExpertCandidate, error) {
	request, err := s.visibleRequest(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	linked := expertID != nil && *expertID != ""
	if !linked && strings.TrimSpace(req.Name) == "" {
		return nil, appErrors.Validation("invalid application payload", map[string]string{
			"name": "name is required",
		})
	}

	normalized, err := ValidateResponses(request.Qualifications, req.Responses, true)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	candidate := &models.ExpertCandidate{
		RequestID: request.ID,
		Source:    models.SourcePublicLink,
		Status:    models.StatusIdentified,
		StatusHistory: models.StatusHistory{{
			Status:    models.StatusIdentified,
			ChangedBy: models.ActorPublicLink,
			ChangedAt: now,
		}},
		QualificationResponses: normalized,
		InternalNotes:          models.NoteList{},
		RespondedAt:            &now,
		AddedByID:              models.ActorPublicLink,
		AddedBy:                models.ActorPublicLink,
	}
	if linked {
		candidate.ExpertID = expertID
	} else {
		profile := &models.ExternalProfile{Name: strings.TrimSpace(req.Name)}
		if req.Email != "" {
			profile.Email = &req.Email
		}
		if req.LinkedInURL != "" {
			profile.LinkedInURL = &req.LinkedInURL
		}
		if req.Headline != "" {
			profile.Headline = &req.Headline
		}
		candidate.ExternalProfile = profile
	}

	if err := s.candidates.Create(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record application")
	}
	return candidate, nil
}

// visibleRequest loads the request behind a slug and applies the public
// visibility rules. Every hidden case collapses to the same answer.
func (s *PublicService) visibleRequest(ctx context.Context, slug string) (*models.ExpertRequest, error) {
	request, err := s.requests.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errOpportunityUnavailable
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !request.IsPublic {
		return nil, errOpportunityUnavailable
	}
	if s.cfg.RequireOpen && request.State != models.RequestStateOpen {
		return nil, errOpportunityUnavailable
	}
	return request, nil
}
