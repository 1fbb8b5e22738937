package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vettedhq/sourcing-api/internal/models"
)

const expertColumns = `id, slug, name, headline, bio, expertise, categories, rating, review_count, verified, hourly_rate, created_at`

// ExpertRepository is the read-only surface over the expert catalog.
type ExpertRepository struct {
	db *sqlx.DB
}

// NewExpertRepository constructs an ExpertRepository.
func NewExpertRepository(db *sqlx.DB) *ExpertRepository {
	return &ExpertRepository{db: db}
}

// FindByID fetches a catalog expert by ID.
func (r *ExpertRepository) FindByID(ctx context.Context, id string) (*models.Expert, error) {
	query := fmt.Sprintf("SELECT %s FROM experts WHERE id = $1", expertColumns)
	var expert models.Expert
	if err := r.db.GetContext(ctx, &expert, query, id); err != nil {
		return nil, err
	}
	return &expert, nil
}

// Search returns catalog experts matching the filter. Free-text search spans
// name, headline, bio and the expertise tags.
func (r *ExpertRepository) Search(ctx context.Context, filter models.ExpertFilter) ([]models.Expert, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(name) LIKE $%d OR LOWER(headline) LIKE $%d OR LOWER(bio) LIKE $%d OR LOWER(expertise::text) LIKE $%d)",
			idx, idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(categories::text) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Category)+"%")
	}
	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("verified = $%d", len(args)+1))
		args = append(args, *filter.Verified)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf("SELECT %s FROM experts WHERE %s ORDER BY created_at ASC LIMIT %d",
		expertColumns, strings.Join(conditions, " AND "), limit)

	var experts []models.Expert
	if err := r.db.SelectContext(ctx, &experts, query, args...); err != nil {
		return nil, fmt.Errorf("search experts: %w", err)
	}
	return experts, nil
}

// Catalog returns the full expert catalog in stable creation order, as
// consumed by the matching scorer.
func (r *ExpertRepository) Catalog(ctx context.Context) ([]models.Expert, error) {
	query := fmt.Sprintf("SELECT %s FROM experts ORDER BY created_at ASC", expertColumns)
	var experts []models.Expert
	if err := r.db.SelectContext(ctx, &experts, query); err != nil {
		return nil, fmt.Errorf("load expert catalog: %w", err)
	}
	return experts, nil
}
