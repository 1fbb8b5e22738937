package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vettedhq/sourcing-api/internal/models"
)

const requestColumns = `id, slug, created_by_id, created_by, title, description, agency, contract_type, naics_code, deadline,
        required_expertise, clearance_required, qualifications, state, close_reason, is_public,
        candidate_count, matched_count, created_at, updated_at`

// RequestRepository manages persistence for expert requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// List returns requests matching the provided filters, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.ExpertRequest, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, filter.State)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("created_by_id = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if filter.Public != nil {
		conditions = append(conditions, fmt.Sprintf("is_public = $%d", len(args)+1))
		args = append(args, *filter.Public)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	query := fmt.Sprintf("SELECT %s FROM expert_requests WHERE %s ORDER BY created_at DESC",
		requestColumns, strings.Join(conditions, " AND "))

	var requests []models.ExpertRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// FindByID fetches a request by ID.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.ExpertRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM expert_requests WHERE id = $1", requestColumns)
	var request models.ExpertRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindBySlug fetches a request by its public slug.
func (r *RequestRepository) FindBySlug(ctx context.Context, slug string) (*models.ExpertRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM expert_requests WHERE slug = $1", requestColumns)
	var request models.ExpertRequest
	if err := r.db.GetContext(ctx, &request, query, slug); err != nil {
		return nil, err
	}
	return &request, nil
}

// Create inserts a new request record.
func (r *RequestRepository) Create(ctx context.Context, request *models.ExpertRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO expert_requests (id, slug, created_by_id, created_by, title, description, agency, contract_type, naics_code, deadline,
        required_expertise, clearance_required, qualifications, state, close_reason, is_public, candidate_count, matched_count, created_at, updated_at)
        VALUES (:id, :slug, :created_by_id, :created_by, :title, :description, :agency, :contract_type, :naics_code, :deadline,
        :required_expertise, :clearance_required, :qualifications, :state, :close_reason, :is_public, :candidate_count, :matched_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// Update modifies an existing request. Aggregate counters are not written
// here; they are recomputed by the candidate repository inside the same
// transaction as the candidate write.
func (r *RequestRepository) Update(ctx context.Context, request *models.ExpertRequest) error {
	request.UpdatedAt = time.Now().UTC()
	const query = `UPDATE expert_requests SET title = :title, description = :description, agency = :agency,
        contract_type = :contract_type, naics_code = :naics_code, deadline = :deadline,
        required_expertise = :required_expertise, clearance_required = :clearance_required,
        qualifications = :qualifications, state = :state, close_reason = :close_reason,
        is_public = :is_public, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return nil
}

// Delete removes the request and cascades to every candidate attached to it
// in one transaction.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM expert_candidates WHERE request_id = $1", id); err != nil {
		return fmt.Errorf("cascade delete candidates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM expert_requests WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete request: %w", err)
	}
	return nil
}
