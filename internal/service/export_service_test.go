package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vettedhq/sourcing-api/internal/models"
	"github.com/vettedhq/sourcing-api/pkg/config"
	"github.com/vettedhq/sourcing-api/pkg/jobs"
	"github.com/vettedhq/sourcing-api/pkg/storage"
)

type mockExportRepo struct {
	jobs map[string]models.ExportJob
}

func newMockExportRepo() *mockExportRepo {
	return &mockExportRepo{jobs: map[string]models.ExportJob{}}
}

func (m *mockExportRepo) Create(ctx context.Context, job *models.ExportJob) error {
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockExportRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &j, nil
}

func (m *mockExportRepo) MarkProcessing(ctx context.Context, id string) error {
	j := m.jobs[id]
	j.Status = models.ExportStatusProcessing
	m.jobs[id] = j
	return nil
}

func (m *mockExportRepo) MarkFinished(ctx context.Context, id, filePath, downloadURL string, finishedAt time.Time) error {
	j := m.jobs[id]
	j.Status = models.ExportStatusFinished
	j.FilePath = &filePath
	j.DownloadURL = &downloadURL
	j.FinishedAt = &finishedAt
	m.jobs[id] = j
	return nil
}

func (m *mockExportRepo) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	j := m.jobs[id]
	j.Status = models.ExportStatusFailed
	j.ErrorMessage = &message
	j.FinishedAt = &finishedAt
	m.jobs[id] = j
	return nil
}

func exportFixture(t *testing.T) (*ExportService, *mockExportRepo, *mockCandidateRepo) {
	t.Helper()
	requests := newMockRequestRepo(models.ExpertRequest{
		ID:             "req-1",
		Title:          "FedRAMP advisory",
		State:          models.RequestStateOpen,
		CandidateCount: 1,
	})
	candidates := newMockCandidateRepo(requests)
	exportRepo := newMockExportRepo()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export_test_secret", time.Hour)

	svc := NewExportService(exportRepo, requests, candidates, store, signer, config.ExportsConfig{
		Enabled:           true,
		WorkerConcurrency: 1,
		WorkerRetries:     1,
	}, nil)
	return svc, exportRepo, candidates
}

func TestExportServiceEnqueueValidation(t *testing.T) {
	svc, _, _ := exportFixture(t)

	_, err := svc.Enqueue(context.Background(), "req-1", models.ExportFormat("xlsx"), "user-1")
	require.Error(t, err)

	_, err = svc.Enqueue(context.Background(), "req-missing", models.ExportFormatCSV, "user-1")
	require.Error(t, err)
}

func TestExportServiceProcessRendersCSV(t *testing.T) {
	svc, exportRepo, candidates := exportFixture(t)

	profile := &models.ExternalProfile{Name: "Jordan Lee"}
	require.NoError(t, candidates.Create(context.Background(), &models.ExpertCandidate{
		RequestID:       "req-1",
		ExternalProfile: profile,
		Source:          models.SourceLinkedIn,
		Status:          models.StatusVetting,
	}))

	job := &models.ExportJob{
		ID:        "job-1",
		RequestID: "req-1",
		Format:    models.ExportFormatCSV,
		Status:    models.ExportStatusQueued,
		CreatedBy: "user-1",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, exportRepo.Create(context.Background(), job))

	err := svc.process(context.Background(), jobs.Job{ID: "job-1", Type: "csv", Payload: "req-1"})
	require.NoError(t, err)

	stored, err := exportRepo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	require.NotNil(t, stored.FilePath)
	require.NotNil(t, stored.DownloadURL)

	parsed, err := url.Parse(*stored.DownloadURL)
	require.NoError(t, err)
	file, downloaded, err := svc.Download(context.Background(), parsed.Query().Get("token"))
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, models.ExportFormatCSV, downloaded.Format)

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Candidate", "Source", "Status", "Contacted", "Responded", "Notes"}, records[0])
	assert.Equal(t, "Jordan Lee", records[1][0])
	assert.Equal(t, "vetting", records[1][2])
}

func TestExportServiceProcessMarksFailures(t *testing.T) {
	svc, exportRepo, _ := exportFixture(t)

	job := &models.ExportJob{ID: "job-2", RequestID: "req-missing", Format: models.ExportFormatCSV}
	require.NoError(t, exportRepo.Create(context.Background(), job))

	err := svc.process(context.Background(), jobs.Job{ID: "job-2", Type: "csv", Payload: "req-missing"})
	require.Error(t, err)

	stored, err := exportRepo.FindByID(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
}

func TestExportServiceDownloadRejectsTamperedToken(t *testing.T) {
	svc, _, _ := exportFixture(t)

	_, _, err := svc.Download(context.Background(), "bogus-token")
	require.Error(t, err)
}
