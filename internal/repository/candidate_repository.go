package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vettedhq/sourcing-api/internal/models"
)

const candidateColumns = `id, request_id, expert_id, external_profile, source, status, status_history,
        qualification_responses, internal_notes, client_notes, contacted_at, responded_at, last_viewed_at,
        added_by_id, added_by, created_at, updated_at`

// recountQuery keeps the parent request's derived counters consistent with
// the candidate set. It always runs inside the same transaction as the
// candidate write so the aggregates never drift (lost-update safety).
const recountQuery = `UPDATE expert_requests SET
        candidate_count = (SELECT COUNT(*) FROM expert_candidates WHERE request_id = $1),
        matched_count = (SELECT COUNT(*) FROM expert_candidates WHERE request_id = $1 AND status = $2),
        updated_at = $3
        WHERE id = $1`

// CandidateRepository manages persistence for pipeline candidates.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository constructs a CandidateRepository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// FindByID fetches a candidate by ID.
func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.ExpertCandidate, error) {
	query := fmt.Sprintf("SELECT %s FROM expert_candidates WHERE id = $1", candidateColumns)
	var candidate models.ExpertCandidate
	if err := r.db.GetContext(ctx, &candidate, query, id); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// ListByRequest returns candidates for one request, oldest first.
func (r *CandidateRepository) ListByRequest(ctx context.Context, filter models.CandidateFilter) ([]models.ExpertCandidate, error) {
	conditions := []string{"request_id = $1"}
	args := []interface{}{filter.RequestID}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)+1))
		args = append(args, filter.Source)
	}

	query := fmt.Sprintf("SELECT %s FROM expert_candidates WHERE %s ORDER BY created_at ASC",
		candidateColumns, strings.Join(conditions, " AND "))

	var candidates []models.ExpertCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return candidates, nil
}

// Create inserts a candidate and recomputes the parent request's counters in
// one transaction.
func (r *CandidateRepository) Create(ctx context.Context, candidate *models.ExpertCandidate) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create candidate: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO expert_candidates (id, request_id, expert_id, external_profile, source, status, status_history,
        qualification_responses, internal_notes, client_notes, contacted_at, responded_at, last_viewed_at, added_by_id, added_by, created_at, updated_at)
        VALUES (:id, :request_id, :expert_id, :external_profile, :source, :status, :status_history,
        :qualification_responses, :internal_notes, :client_notes, :contacted_at, :responded_at, :last_viewed_at, :added_by_id, :added_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, candidate); err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, recountQuery, candidate.RequestID, models.StatusMatched, now); err != nil {
		return fmt.Errorf("recount request aggregates: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create candidate: %w", err)
	}
	return nil
}

// Update persists candidate mutations that cannot change the parent
// aggregates (responses, notes, viewed timestamps).
func (r *CandidateRepository) Update(ctx context.Context, candidate *models.ExpertCandidate) error {
	candidate.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, candidateUpdateQuery, candidate); err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	return nil
}

// UpdateWithRecount persists a status-affecting mutation and recomputes the
// parent request's counters in one transaction.
func (r *CandidateRepository) UpdateWithRecount(ctx context.Context, candidate *models.ExpertCandidate) error {
	now := time.Now().UTC()
	candidate.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update candidate: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NamedExecContext(ctx, candidateUpdateQuery, candidate); err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, recountQuery, candidate.RequestID, models.StatusMatched, now); err != nil {
		return fmt.Errorf("recount request aggregates: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update candidate: %w", err)
	}
	return nil
}

const candidateUpdateQuery = `UPDATE expert_candidates SET status = :status, status_history = :status_history,
        qualification_responses = :qualification_responses, internal_notes = :internal_notes, client_notes = :client_notes,
        contacted_at = :contacted_at, responded_at = :responded_at, last_viewed_at = :last_viewed_at,
        updated_at = :updated_at WHERE id = :id`

// Delete removes a candidate and recomputes the parent request's counters in
// one transaction. Returns sql.ErrNoRows when the candidate does not exist.
func (r *CandidateRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete candidate: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var requestID string
	if err := tx.GetContext(ctx, &requestID, "SELECT request_id FROM expert_candidates WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("resolve candidate request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM expert_candidates WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, recountQuery, requestID, models.StatusMatched, time.Now().UTC()); err != nil {
		return fmt.Errorf("recount request aggregates: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete candidate: %w", err)
	}
	return nil
}

// CountsByStatus returns the per-status candidate counts for one request.
func (r *CandidateRepository) CountsByStatus(ctx context.Context, requestID string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx,
		"SELECT status, COUNT(*) FROM expert_candidates WHERE request_id = $1 GROUP BY status", requestID)
	if err != nil {
		return nil, fmt.Errorf("count candidates by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}
