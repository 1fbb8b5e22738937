package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vettedhq/sourcing-api/internal/models"
	"github.com/vettedhq/sourcing-api/pkg/config"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
	"github.com/vettedhq/sourcing-api/pkg/export"
	"github.com/vettedhq/sourcing-api/pkg/jobs"
	"github.com/vettedhq/sourcing-api/pkg/storage"
)

type exportRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id, filePath, downloadURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
}

type exportRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.ExpertRequest, error)
}

type exportCandidateRepository interface {
	ListByRequest(ctx context.Context, filter models.CandidateFilter) ([]models.ExpertCandidate, error)
}

// ExportService produces downloadable pipeline reports. Requests are queued
// and rendered by a background worker; the finished file is served through a
// short-lived signed URL.
type ExportService struct {
	repo       exportRepository
	requests   exportRequestRepository
	candidates exportCandidateRepository
	storage    *storage.LocalStorage
	signer     *storage.SignedURLSigner
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	queue      *jobs.Queue
	cfg        config.ExportsConfig
	logger     *zap.Logger
}

// NewExportService constructs the export service and its worker queue. Call
// Start before enqueueing and Stop on shutdown.
func NewExportService(repo exportRepository, requests exportRequestRepository, candidates exportCandidateRepository, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg config.ExportsConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		repo:       repo,
		requests:   requests,
		candidates: candidates,
		storage:    store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		cfg:        cfg,
		logger:     logger,
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue records an export job and hands it to the worker pool.
func (s *ExportService) Enqueue(ctx context.Context, requestID string, format models.ExportFormat, createdBy string) (*models.ExportJob, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exports are not available")
	}
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Validation("invalid export payload", map[string]string{
			"format": fmt.Sprintf("unsupported format %q", format),
		})
	}
	if _, err := s.requests.FindByID(ctx, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Format:    format,
		Status:    models.ExportStatusQueued,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(format), Payload: job.RequestID}); err != nil {
		now := time.Now().UTC()
		if markErr := s.repo.MarkFailed(ctx, job.ID, "export queue is full", now); markErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("jobId", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export queue is full")
	}
	return job, nil
}

// Get returns an export job's current status.
func (s *ExportService) Get(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// Download resolves a signed token to the rendered file on disk.
func (s *ExportService) Download(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download link")
	}
	job, err := s.Get(ctx, exportID)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != models.ExportStatusFinished || job.FilePath == nil || *job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return file, job, nil
}

// process renders one queued export. Runs on the worker pool.
func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	requestID, _ := job.Payload.(string)
	if err := s.repo.MarkProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	data, title, summary, err := s.buildReport(ctx, requestID)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}

	var rendered []byte
	ext := job.Type
	switch models.ExportFormat(job.Type) {
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(*data, title, summary)
	default:
		rendered, err = s.csv.Render(*data)
		ext = "csv"
	}
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}

	filename := fmt.Sprintf("pipeline-%s-%s.%s", requestID, job.ID, ext)
	relPath, err := s.storage.Save(filename, rendered)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}
	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return err
	}
	downloadURL := "/exports/download?token=" + url.QueryEscape(token)
	if err := s.repo.MarkFinished(ctx, job.ID, relPath, downloadURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	s.logger.Info("export finished", zap.String("jobId", job.ID), zap.String("requestId", requestID))
	return nil
}

func (s *ExportService) fail(ctx context.Context, jobID string, cause error) {
	if err := s.repo.MarkFailed(ctx, jobID, cause.Error(), time.Now().UTC()); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("jobId", jobID), zap.Error(err))
	}
}

// buildReport flattens a request's candidate pipeline into a tabular dataset.
func (s *ExportService) buildReport(ctx context.Context, requestID string) (*export.Dataset, string, []string, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, "", nil, fmt.Errorf("load request: %w", err)
	}
	candidates, err := s.candidates.ListByRequest(ctx, models.CandidateFilter{RequestID: requestID})
	if err != nil {
		return nil, "", nil, fmt.Errorf("load candidates: %w", err)
	}

	data := &export.Dataset{
		Headers: []string{"Candidate", "Source", "Status", "Contacted", "Responded", "Notes"},
		Rows:    make([][]string, 0, len(candidates)),
	}
	for _, c := range candidates {
		data.Rows = append(data.Rows, []string{
			c.DisplayName(),
			string(c.Source),
			string(c.Status),
			formatTime(c.ContactedAt),
			formatTime(c.RespondedAt),
			fmt.Sprintf("%d", len(c.InternalNotes)+len(c.ClientNotes)),
		})
	}

	title := fmt.Sprintf("Candidate Pipeline: %s", request.Title)
	summary := []string{
		fmt.Sprintf("Candidates: %d", request.CandidateCount),
		fmt.Sprintf("Matched: %d", request.MatchedCount),
		fmt.Sprintf("State: %s", request.State),
	}
	return data, title, summary, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
