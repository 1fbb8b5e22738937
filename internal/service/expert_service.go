package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/vettedhq/sourcing-api/internal/models"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
)

type expertRepository interface {
	FindByID(ctx context.Context, id string) (*models.Expert, error)
	Search(ctx context.Context, filter models.ExpertFilter) ([]models.Expert, error)
}

// ExpertService is a read-only facade over the expert catalog, used when
// sourcing candidates from the platform.
type ExpertService struct {
	repo   expertRepository
	logger *zap.Logger
}

// NewExpertService constructs the expert catalog service.
func NewExpertService(repo expertRepository, logger *zap.Logger) *ExpertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpertService{repo: repo, logger: logger}
}

// Get returns one catalog expert by ID.
func (s *ExpertService) Get(ctx context.Context, id string) (*models.Expert, error) {
	expert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "expert not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load expert")
	}
	return expert, nil
}

// Search runs a free-text catalog search.
func (s *ExpertService) Search(ctx context.Context, filter models.ExpertFilter) ([]models.Expert, error) {
	if filter.Limit <= 0 || filter.Limit > 50 {
		filter.Limit = 20
	}
	experts, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search experts")
	}
	return experts, nil
}
