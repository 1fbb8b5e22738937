package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vettedhq/sourcing-api/internal/models"
	"github.com/vettedhq/sourcing-api/pkg/config"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
)

func publicFixture(t *testing.T, cfg config.PublicIntakeConfig) (*PublicService, *mockCandidateRepo, *mockRequestRepo) {
	t.Helper()
	requests := newMockRequestRepo(
		models.ExpertRequest{
			ID:       "req-1",
			Slug:     "fedramp-advisory-abc123",
			Title:    "FedRAMP compliance advisory",
			State:    models.RequestStateOpen,
			IsPublic: true,
			Qualifications: models.QualificationList{
				{ID: "q-1", Type: models.QualificationTypeBoolean, Question: "Active certification?", Required: true},
				{ID: "q-2", Type: models.QualificationTypeMultiSelect, Question: "Frameworks used", Options: []string{"NIST", "ISO"}},
			},
		},
		models.ExpertRequest{
			ID:       "req-2",
			Slug:     "private-engagement-def456",
			Title:    "Private engagement",
			State:    models.RequestStateOpen,
			IsPublic: false,
		},
		models.ExpertRequest{
			ID:       "req-3",
			Slug:     "draft-opportunity-ghi789",
			Title:    "Draft opportunity",
			State:    models.RequestStateDraft,
			IsPublic: true,
		},
	)
	candidates := newMockCandidateRepo(requests)
	svc := NewPublicService(requests, candidates, nil, cfg, nil, nil)
	return svc, candidates, requests
}

func TestGetViewStripsInternalFields(t *testing.T) {
	svc, _, _ := publicFixture(t, config.PublicIntakeConfig{Enabled: true})

	view, err := svc.GetView(context.Background(), "fedramp-advisory-abc123")
	require.NoError(t, err)
	assert.Equal(t, "FedRAMP compliance advisory", view.Title)
	assert.Len(t, view.Qualifications, 2)
}

func TestGetViewMasksHiddenRequestsUniformly(t *testing.T) {
	svc, _, _ := publicFixture(t, config.PublicIntakeConfig{Enabled: true, RequireOpen: true})

	for _, slug := range []string{"no-such-slug", "private-engagement-def456", "draft-opportunity-ghi789"} {
		_, err := svc.GetView(context.Background(), slug)
		require.Error(t, err, slug)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code, slug)
		assert.Equal(t, "opportunity unavailable", appErr.Message, slug)
	}
}

func TestGetViewServesPublicDraftWhenRequireOpenDisabled(t *testing.T) {
	svc, _, _ := publicFixture(t, config.PublicIntakeConfig{Enabled: true, RequireOpen: false})

	view, err := svc.GetView(context.Background(), "draft-opportunity-ghi789")
	require.NoError(t, err)
	assert.Equal(t, "Draft opportunity", view.Title)
}

func TestGetViewDisabledIntake(t *testing.T) {
	svc, _, _ := publicFixture(t, config.PublicIntakeConfig{Enabled: false})

	_, err := svc.GetView(context.Background(), "fedramp-advisory-abc123")
	require.Error(t, err)
}

func TestApplyCreatesExternalCandidate(t *testing.T) {
	svc, candidates, requests := publicFixture(t, config.PublicIntakeConfig{Enabled: true})

	candidate, err := svc.Apply(context.Background(), "fedramp-advisory-abc123", PublicApplicationRequest{
		Name:  "Jordan Lee",
		Email: "jordan@example.com",
		Responses: []models.QualificationResponse{
			{QualificationID: "q-1", Answer: true},
			{QualificationID: "q-2", Answer: []interface{}{"NIST"}},
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.SourcePublicLink, candidate.Source)
	assert.Equal(t, models.StatusIdentified, candidate.Status)
	assert.Equal(t, models.ActorPublicLink, candidate.AddedByID)
	require.Len(t, candidate.StatusHistory, 1)
	assert.Equal(t, models.ActorPublicLink, candidate.StatusHistory[0].ChangedBy)
	require.NotNil(t, candidate.RespondedAt)
	require.NotNil(t, candidate.ExternalProfile)
	assert.Equal(t, "Jordan Lee", candidate.ExternalProfile.Name)
	assert.Nil(t, candidate.ExpertID)

	request, err := requests.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 1, request.CandidateCount)
	assert.Len(t, candidates.candidates, 1)
}

func TestApplyLinksAuthenticatedExpert(t *testing.T) {
	svc, _, _ := publicFixture(t, config.PublicIntakeConfig{Enabled: true})
	expertID := "expert-7"

	candidate, err := svc.Apply(context.Background(), "fedramp-advisory-abc123", PublicApplicationRequest{
		Responses: []models.QualificationResponse{
			{QualificationID: "q-1", Answer: true},
		},
	}, &expertID)
	require.NoError(t, err)

	require.NotNil(t, candidate.ExpertID)
	assert.Equal(t, "expert-7", *candidate.ExpertID)
	assert.Nil(t, candidate.ExternalProfile)
}

func TestApplyNamesFirstUnansweredRequiredQuestion(t *testing.T) {
	svc, candidates, _ := publicFixture(t, config.PublicIntakeConfig{Enabled: true})

	_, err := svc.Apply(context.Background(), "fedramp-advisory-abc123", PublicApplicationRequest{
		Name: "Jordan Lee",
		Responses: []models.QualificationResponse{
			{QualificationID: "q-2", Answer: []interface{}{"ISO"}},
		},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "Active certification?")
	assert.Empty(t, candidates.candidates, "no partial candidate on rejection")
}

func TestApplyRequiresNameWithoutAccount(t *testing.T) {
	svc, _, _ := publicFixture(t, config.PublicIntakeConfig{Enabled: true})

	_, err := svc.Apply(context.Background(), "fedramp-advisory-abc123", PublicApplicationRequest{
		Responses: []models.QualificationResponse{
			{QualificationID: "q-1", Answer: true},
		},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApplyHiddenRequestMasked(t *testing.T) {
	svc, _, _ := publicFixture(t, config.PublicIntakeConfig{Enabled: true})

	_, err := svc.Apply(context.Background(), "private-engagement-def456", PublicApplicationRequest{
		Name: "Jordan Lee",
	}, nil)
	require.Error(t, err)
	assert.Equal(t, "opportunity unavailable", appErrors.FromError(err).Message)
}
