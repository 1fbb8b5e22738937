package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/vettedhq/sourcing-api/internal/models"
)

func newCandidateRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCandidateRepositoryCreateRecountsInOneTransaction(t *testing.T) {
	db, mock, cleanup := newCandidateRepoMock(t)
	defer cleanup()

	repo := NewCandidateRepository(db)
	expertID := "expert-1"
	candidate := &models.ExpertCandidate{
		RequestID: "req-1",
		ExpertID:  &expertID,
		Source:    models.SourcePlatform,
		Status:    models.StatusIdentified,
		StatusHistory: models.StatusHistory{{
			Status:    models.StatusIdentified,
			ChangedBy: "user-1",
			ChangedAt: time.Now().UTC(),
		}},
		AddedByID: "user-1",
		AddedBy:   "Dana",
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO expert_candidates")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE expert_requests SET")).
		WithArgs("req-1", models.StatusMatched, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), candidate))
	require.NotEmpty(t, candidate.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryUpdateWithRecount(t *testing.T) {
	db, mock, cleanup := newCandidateRepoMock(t)
	defer cleanup()

	repo := NewCandidateRepository(db)
	candidate := &models.ExpertCandidate{
		ID:        "cand-1",
		RequestID: "req-1",
		Status:    models.StatusMatched,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE expert_candidates SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE expert_requests SET")).
		WithArgs("req-1", models.StatusMatched, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateWithRecount(context.Background(), candidate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryDeleteRecounts(t *testing.T) {
	db, mock, cleanup := newCandidateRepoMock(t)
	defer cleanup()

	repo := NewCandidateRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT request_id FROM expert_candidates WHERE id = $1")).
		WithArgs("cand-1").
		WillReturnRows(sqlmock.NewRows([]string{"request_id"}).AddRow("req-1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM expert_candidates WHERE id = $1")).
		WithArgs("cand-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE expert_requests SET")).
		WithArgs("req-1", models.StatusMatched, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "cand-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newCandidateRepoMock(t)
	defer cleanup()

	repo := NewCandidateRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT request_id FROM expert_candidates WHERE id = $1")).
		WithArgs("cand-missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "cand-missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryCountsByStatus(t *testing.T) {
	db, mock, cleanup := newCandidateRepoMock(t)
	defer cleanup()

	repo := NewCandidateRepository(db)
	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("identified", 2).
		AddRow("matched", 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM expert_candidates")).
		WithArgs("req-1").
		WillReturnRows(rows)

	counts, err := repo.CountsByStatus(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, 2, counts["identified"])
	require.Equal(t, 1, counts["matched"])
	require.NoError(t, mock.ExpectationsWereMet())
}
