package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vettedhq/sourcing-api/internal/models"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
)

func requestFixture(t *testing.T) (*RequestService, *mockRequestRepo, *mockCandidateRepo) {
	t.Helper()
	requests := newMockRequestRepo()
	candidates := newMockCandidateRepo(requests)
	svc := NewRequestService(requests, candidates, nil, nil, nil)
	return svc, requests, candidates
}

func validCreatePayload() CreateRequestRequest {
	return CreateRequestRequest{
		Title:             "FedRAMP compliance advisory engagement",
		Description:       strings.Repeat("Need an expert in cloud compliance. ", 3),
		RequiredExpertise: []string{"FedRAMP"},
	}
}

func TestCreateRequestDefaultsToDraft(t *testing.T) {
	svc, _, _ := requestFixture(t)

	request, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1", Name: "Dana"}, validCreatePayload())
	require.NoError(t, err)

	assert.Equal(t, models.RequestStateDraft, request.State)
	assert.Equal(t, 0, request.CandidateCount)
	assert.Equal(t, 0, request.MatchedCount)
	assert.Equal(t, "user-1", request.CreatedByID)
	assert.Equal(t, "Dana", request.CreatedBy.Name)
	assert.NotEmpty(t, request.ID)
}

func TestCreateRequestValidatesPerField(t *testing.T) {
	svc, _, _ := requestFixture(t)

	_, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, CreateRequestRequest{
		Title:       "too short",
		Description: "also too short",
		State:       models.RequestStateOpen,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "title")
	assert.Contains(t, appErr.Details, "description")
	assert.Contains(t, appErr.Details, "required_expertise")
}

func TestCreateRequestSlugFromTitle(t *testing.T) {
	svc, _, _ := requestFixture(t)

	payload := validCreatePayload()
	payload.Title = "FedRAMP & NIST 800-53 Advisory!"
	request, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, payload)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(request.Slug, "fedramp-nist-80053-advisory-"), request.Slug)
	assert.True(t, strings.HasSuffix(request.Slug, request.ID[:8]))
}

func TestCreateRequestAssignsQualificationIDs(t *testing.T) {
	svc, _, _ := requestFixture(t)

	payload := validCreatePayload()
	payload.Qualifications = []models.Qualification{
		{Type: models.QualificationTypeBoolean, Question: "Certified?"},
		{ID: "keep-me", Type: models.QualificationTypeText, Question: "Experience?"},
	}
	request, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, payload)
	require.NoError(t, err)

	require.Len(t, request.Qualifications, 2)
	assert.NotEmpty(t, request.Qualifications[0].ID)
	assert.Equal(t, "keep-me", request.Qualifications[1].ID)
	assert.NotEqual(t, request.Qualifications[0].ID, request.Qualifications[1].ID)
}

func TestCreateRequestSelectNeedsOptions(t *testing.T) {
	svc, _, _ := requestFixture(t)

	payload := validCreatePayload()
	payload.Qualifications = []models.Qualification{
		{Type: models.QualificationTypeSingleSelect, Question: "Pick one", Options: []string{"only"}},
	}
	_, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, payload)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOpenCloseLifecycle(t *testing.T) {
	svc, _, _ := requestFixture(t)

	request, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, validCreatePayload())
	require.NoError(t, err)

	opened, err := svc.Open(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStateOpen, opened.State)

	_, err = svc.Open(context.Background(), request.ID)
	require.Error(t, err, "reopening an open request should fail")

	reason := "filled the role"
	closed, err := svc.Close(context.Background(), request.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStateClosed, closed.State)
	require.NotNil(t, closed.CloseReason)

	_, err = svc.Close(context.Background(), request.ID, nil)
	require.Error(t, err)
}

func TestOpenRequiresExpertise(t *testing.T) {
	svc, _, _ := requestFixture(t)

	payload := validCreatePayload()
	payload.RequiredExpertise = nil
	request, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, payload)
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), request.ID)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Details, "required_expertise")
}

func TestUpdateRejectedWhenClosed(t *testing.T) {
	svc, _, _ := requestFixture(t)

	request, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, validCreatePayload())
	require.NoError(t, err)
	_, err = svc.Open(context.Background(), request.ID)
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), request.ID, nil)
	require.NoError(t, err)

	title := "A perfectly valid replacement title"
	_, err = svc.Update(context.Background(), request.ID, UpdateRequestRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRequestClosed.Code, appErrors.FromError(err).Code)
}

func TestDeleteCascadesToCandidates(t *testing.T) {
	svc, requests, candidates := requestFixture(t)

	request, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, validCreatePayload())
	require.NoError(t, err)

	expertID := "expert-1"
	err = candidates.Create(context.Background(), &models.ExpertCandidate{
		RequestID: request.ID,
		ExpertID:  &expertID,
		Source:    models.SourcePlatform,
		Status:    models.StatusIdentified,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), request.ID))
	_, err = requests.FindByID(context.Background(), request.ID)
	require.Error(t, err)
}

func TestStatsAggregatesFunnel(t *testing.T) {
	svc, _, candidates := requestFixture(t)

	request, err := svc.Create(context.Background(), models.UserSnapshot{ID: "user-1"}, validCreatePayload())
	require.NoError(t, err)

	for _, status := range []models.CandidateStatus{models.StatusIdentified, models.StatusIdentified, models.StatusMatched} {
		expertID := "expert-" + string(status)
		err = candidates.Create(context.Background(), &models.ExpertCandidate{
			RequestID: request.ID,
			ExpertID:  &expertID,
			Source:    models.SourcePlatform,
			Status:    status,
		})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CandidateCount)
	assert.Equal(t, 1, stats.MatchedCount)
	assert.Equal(t, 2, stats.ByStatus["identified"])
	assert.Equal(t, 1, stats.ByStatus["matched"])
}
