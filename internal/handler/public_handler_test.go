package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vettedhq/sourcing-api/internal/models"
	"github.com/vettedhq/sourcing-api/internal/service"
	"github.com/vettedhq/sourcing-api/pkg/config"
	"github.com/vettedhq/sourcing-api/pkg/response"
)

type fakePublicRequestRepo struct {
	bySlug map[string]models.ExpertRequest
}

func (f *fakePublicRequestRepo) FindBySlug(ctx context.Context, slug string) (*models.ExpertRequest, error) {
	r, ok := f.bySlug[slug]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

type fakePublicCandidateRepo struct {
	created []models.ExpertCandidate
}

func (f *fakePublicCandidateRepo) Create(ctx context.Context, candidate *models.ExpertCandidate) error {
	candidate.ID = "cand-1"
	f.created = append(f.created, *candidate)
	return nil
}

func publicRouter(t *testing.T, cfg config.PublicIntakeConfig) (*gin.Engine, *fakePublicCandidateRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	requests := &fakePublicRequestRepo{bySlug: map[string]models.ExpertRequest{
		"cloud-migration-abc123": {
			ID:       "req-1",
			Slug:     "cloud-migration-abc123",
			Title:    "Cloud migration advisory",
			State:    models.RequestStateOpen,
			IsPublic: true,
			Qualifications: models.QualificationList{
				{ID: "q-1", Type: models.QualificationTypeBoolean, Question: "AWS certified?", Required: true},
			},
		},
		"internal-only-def456": {
			ID:       "req-2",
			Slug:     "internal-only-def456",
			Title:    "Internal engagement",
			State:    models.RequestStateOpen,
			IsPublic: false,
		},
	}}
	candidates := &fakePublicCandidateRepo{}
	svc := service.NewPublicService(requests, candidates, nil, cfg, nil, nil)
	h := NewPublicHandler(svc)

	r := gin.New()
	r.GET("/public/opportunities/:slug", h.GetOpportunity)
	r.POST("/public/opportunities/:slug/apply", h.Apply)
	return r, candidates
}

func TestPublicHandlerGetOpportunity(t *testing.T) {
	r, _ := publicRouter(t, config.PublicIntakeConfig{Enabled: true})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/public/opportunities/cloud-migration-abc123", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	view, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Cloud migration advisory", view["title"])
	assert.NotContains(t, view, "created_by", "ownership must not leak on the public surface")
	assert.NotContains(t, view, "candidate_count")
}

func TestPublicHandlerMasksHiddenOpportunities(t *testing.T) {
	r, _ := publicRouter(t, config.PublicIntakeConfig{Enabled: true})

	for _, slug := range []string{"internal-only-def456", "does-not-exist"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/public/opportunities/"+slug, nil)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusNotFound, w.Code, slug)
		assert.Contains(t, w.Body.String(), "opportunity unavailable", slug)
	}
}

func TestPublicHandlerApply(t *testing.T) {
	r, candidates := publicRouter(t, config.PublicIntakeConfig{Enabled: true})

	payload := map[string]interface{}{
		"name":  "Jordan Lee",
		"email": "jordan@example.com",
		"responses": []map[string]interface{}{
			{"qualificationId": "q-1", "answer": true},
		},
	}
	body, _ := json.Marshal(payload)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/public/opportunities/cloud-migration-abc123/apply", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, candidates.created, 1)
	assert.Equal(t, models.SourcePublicLink, candidates.created[0].Source)
	assert.Equal(t, models.ActorPublicLink, candidates.created[0].AddedByID)
}

func TestPublicHandlerApplyMissingRequiredAnswer(t *testing.T) {
	r, candidates := publicRouter(t, config.PublicIntakeConfig{Enabled: true})

	payload := map[string]interface{}{
		"name":      "Jordan Lee",
		"responses": []map[string]interface{}{},
	}
	body, _ := json.Marshal(payload)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/public/opportunities/cloud-migration-abc123/apply", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "AWS certified?")
	assert.Empty(t, candidates.created)
}
