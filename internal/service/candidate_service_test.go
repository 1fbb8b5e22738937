package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vettedhq/sourcing-api/internal/models"
	appErrors "github.com/vettedhq/sourcing-api/pkg/errors"
)

type mockCandidateRepo struct {
	candidates map[string]models.ExpertCandidate
	requests   *mockRequestRepo
	nextID     int
}

func newMockCandidateRepo(requests *mockRequestRepo) *mockCandidateRepo {
	return &mockCandidateRepo{candidates: map[string]models.ExpertCandidate{}, requests: requests}
}

func (m *mockCandidateRepo) FindByID(ctx context.Context, id string) (*models.ExpertCandidate, error) {
	c, ok := m.candidates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *mockCandidateRepo) ListByRequest(ctx context.Context, filter models.CandidateFilter) ([]models.ExpertCandidate, error) {
	var result []models.ExpertCandidate
	for _, c := range m.candidates {
		if c.RequestID != filter.RequestID {
			continue
		}
		if filter.Status != "" && string(c.Status) != filter.Status {
			continue
		}
		if filter.Source != "" && string(c.Source) != filter.Source {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (m *mockCandidateRepo) Create(ctx context.Context, candidate *models.ExpertCandidate) error {
	m.nextID++
	candidate.ID = fmt.Sprintf("cand-%d", m.nextID)
	m.candidates[candidate.ID] = *candidate
	m.recount(candidate.RequestID)
	return nil
}

func (m *mockCandidateRepo) Update(ctx context.Context, candidate *models.ExpertCandidate) error {
	if _, ok := m.candidates[candidate.ID]; !ok {
		return sql.ErrNoRows
	}
	m.candidates[candidate.ID] = *candidate
	return nil
}

func (m *mockCandidateRepo) UpdateWithRecount(ctx context.Context, candidate *models.ExpertCandidate) error {
	if err := m.Update(ctx, candidate); err != nil {
		return err
	}
	m.recount(candidate.RequestID)
	return nil
}

func (m *mockCandidateRepo) Delete(ctx context.Context, id string) error {
	c, ok := m.candidates[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(m.candidates, id)
	m.recount(c.RequestID)
	return nil
}

func (m *mockCandidateRepo) CountsByStatus(ctx context.Context, requestID string) (map[string]int, error) {
	counts := map[string]int{}
	for _, c := range m.candidates {
		if c.RequestID == requestID {
			counts[string(c.Status)]++
		}
	}
	return counts, nil
}

func (m *mockCandidateRepo) recount(requestID string) {
	if m.requests == nil {
		return
	}
	r, ok := m.requests.requests[requestID]
	if !ok {
		return
	}
	total, matched := 0, 0
	for _, c := range m.candidates {
		if c.RequestID != requestID {
			continue
		}
		total++
		if c.Status == models.StatusMatched {
			matched++
		}
	}
	r.CandidateCount = total
	r.MatchedCount = matched
	m.requests.requests[requestID] = r
}

type mockRequestRepo struct {
	requests map[string]models.ExpertRequest
}

func newMockRequestRepo(requests ...models.ExpertRequest) *mockRequestRepo {
	m := &mockRequestRepo{requests: map[string]models.ExpertRequest{}}
	for _, r := range requests {
		m.requests[r.ID] = r
	}
	return m
}

func (m *mockRequestRepo) List(ctx context.Context, filter models.RequestFilter) ([]models.ExpertRequest, error) {
	var result []models.ExpertRequest
	for _, r := range m.requests {
		result = append(result, r)
	}
	return result, nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.ExpertRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m *mockRequestRepo) FindBySlug(ctx context.Context, slug string) (*models.ExpertRequest, error) {
	for _, r := range m.requests {
		if r.Slug == slug {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.ExpertRequest) error {
	m.requests[request.ID] = *request
	return nil
}

func (m *mockRequestRepo) Update(ctx context.Context, request *models.ExpertRequest) error {
	if _, ok := m.requests[request.ID]; !ok {
		return sql.ErrNoRows
	}
	m.requests[request.ID] = *request
	return nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.requests[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.requests, id)
	return nil
}

func pipelineFixture(t *testing.T) (*CandidateService, *mockCandidateRepo, *mockRequestRepo) {
	t.Helper()
	requests := newMockRequestRepo(models.ExpertRequest{
		ID:    "req-1",
		Title: "FedRAMP compliance advisory",
		State: models.RequestStateOpen,
		Qualifications: models.QualificationList{
			{ID: "q-1", Type: models.QualificationTypeBoolean, Question: "Active certification?", Required: true},
			{ID: "q-2", Type: models.QualificationTypeText, Question: "Describe your experience"},
		},
	})
	candidates := newMockCandidateRepo(requests)
	svc := NewCandidateService(candidates, requests, nil, nil)
	return svc, candidates, requests
}

func addPlatformCandidate(t *testing.T, svc *CandidateService) *models.ExpertCandidate {
	t.Helper()
	expertID := "expert-9"
	candidate, err := svc.Add(context.Background(), "req-1", AddCandidateRequest{
		ExpertID: &expertID,
		Source:   models.SourcePlatform,
	}, Actor{ID: "user-1", Name: "Dana"})
	require.NoError(t, err)
	return candidate
}

func TestAddCandidateSeedsHistoryAndCounts(t *testing.T) {
	svc, _, requests := pipelineFixture(t)

	candidate := addPlatformCandidate(t, svc)

	assert.Equal(t, models.StatusIdentified, candidate.Status)
	require.Len(t, candidate.StatusHistory, 1)
	assert.Equal(t, models.StatusIdentified, candidate.StatusHistory[0].Status)
	assert.Equal(t, "user-1", candidate.StatusHistory[0].ChangedBy)

	request, err := requests.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 1, request.CandidateCount)
	assert.Equal(t, 0, request.MatchedCount)
}

func TestAddCandidateRequiresExactlyOneIdentity(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	expertID := "expert-9"

	_, err := svc.Add(context.Background(), "req-1", AddCandidateRequest{
		ExpertID:        &expertID,
		ExternalProfile: &models.ExternalProfile{Name: "Jordan"},
		Source:          models.SourceLinkedIn,
	}, Actor{ID: "user-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "identity")

	_, err = svc.Add(context.Background(), "req-1", AddCandidateRequest{
		Source: models.SourceLinkedIn,
	}, Actor{ID: "user-1"})
	require.Error(t, err)
}

func TestAddCandidateUnknownRequest(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	expertID := "expert-9"

	_, err := svc.Add(context.Background(), "req-missing", AddCandidateRequest{
		ExpertID: &expertID,
		Source:   models.SourcePlatform,
	}, Actor{ID: "user-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSetStatusAppendsHistoryAndTimestamps(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	note := "sent intro email"
	updated, err := svc.SetStatus(context.Background(), candidate.ID, models.StatusContacted, "user-2", &note)
	require.NoError(t, err)
	assert.Equal(t, models.StatusContacted, updated.Status)
	require.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, "user-2", updated.StatusHistory[1].ChangedBy)
	require.NotNil(t, updated.StatusHistory[1].Note)
	assert.Equal(t, note, *updated.StatusHistory[1].Note)
	require.NotNil(t, updated.ContactedAt)
	assert.Nil(t, updated.RespondedAt)

	updated, err = svc.SetStatus(context.Background(), candidate.ID, models.StatusInterested, "user-2", nil)
	require.NoError(t, err)
	require.NotNil(t, updated.RespondedAt)
}

func TestSetStatusSameStatusIsNoOp(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	updated, err := svc.SetStatus(context.Background(), candidate.ID, models.StatusIdentified, "user-2", nil)
	require.NoError(t, err)
	assert.Len(t, updated.StatusHistory, 1)
}

func TestSetStatusAllowsBackwardMoves(t *testing.T) {
	svc, _, requests := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	_, err := svc.SetStatus(context.Background(), candidate.ID, models.StatusMatched, "user-2", nil)
	require.NoError(t, err)

	request, err := requests.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 1, request.MatchedCount)

	updated, err := svc.SetStatus(context.Background(), candidate.ID, models.StatusIdentified, "user-2", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIdentified, updated.Status)

	request, err = requests.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 0, request.MatchedCount)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	_, err := svc.SetStatus(context.Background(), candidate.ID, models.CandidateStatus("archived"), "user-2", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProposeTransitionFollowsForwardPath(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	updated, err := svc.ProposeTransition(context.Background(), candidate.ID, models.StatusContacted, "user-2", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusContacted, updated.Status)

	_, err = svc.ProposeTransition(context.Background(), candidate.ID, models.StatusMatched, "user-2", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	updated, err = svc.ProposeTransition(context.Background(), candidate.ID, models.StatusRejected, "user-2", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)
}

func TestSubmitResponsesReplacesWholesale(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	first, err := svc.SubmitResponses(context.Background(), candidate.ID, []models.QualificationResponse{
		{QualificationID: "q-1", Answer: true},
		{QualificationID: "q-2", Answer: "ten years of ATO work"},
	})
	require.NoError(t, err)
	assert.Len(t, first.QualificationResponses, 2)
	require.NotNil(t, first.RespondedAt)

	second, err := svc.SubmitResponses(context.Background(), candidate.ID, []models.QualificationResponse{
		{QualificationID: "q-1", Answer: false},
	})
	require.NoError(t, err)
	assert.Len(t, second.QualificationResponses, 1)
	assert.Equal(t, false, second.QualificationResponses[0].Answer)
}

func TestSubmitResponsesRejectsUnknownQualification(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	_, err := svc.SubmitResponses(context.Background(), candidate.ID, []models.QualificationResponse{
		{QualificationID: "q-404", Answer: "hello"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitResponsesRejectsWrongAnswerType(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	_, err := svc.SubmitResponses(context.Background(), candidate.ID, []models.QualificationResponse{
		{QualificationID: "q-1", Answer: "yes"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAddNoteEnforcesLengthCap(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	long := make([]byte, 2001)
	for i := range long {
		long[i] = 'a'
	}
	_, err := svc.AddInternalNote(context.Background(), candidate.ID, Actor{ID: "user-1", Name: "Dana"}, NoteRequest{Note: string(long)})
	require.Error(t, err)

	updated, err := svc.AddInternalNote(context.Background(), candidate.ID, Actor{ID: "user-1", Name: "Dana"}, NoteRequest{Note: "strong candidate"})
	require.NoError(t, err)
	require.Len(t, updated.InternalNotes, 1)
	assert.Equal(t, "Dana", updated.InternalNotes[0].Author)
	assert.Empty(t, updated.ClientNotes)

	updated, err = svc.AddClientNote(context.Background(), candidate.ID, Actor{ID: "user-1", Name: "Dana"}, NoteRequest{Note: "sharing with client"})
	require.NoError(t, err)
	require.Len(t, updated.ClientNotes, 1)
}

func TestRemoveCandidateRecounts(t *testing.T) {
	svc, _, requests := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	_, err := svc.SetStatus(context.Background(), candidate.ID, models.StatusMatched, "user-2", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), candidate.ID))

	request, err := requests.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 0, request.CandidateCount)
	assert.Equal(t, 0, request.MatchedCount)

	err = svc.Remove(context.Background(), candidate.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarkViewedSetsTimestamp(t *testing.T) {
	svc, _, _ := pipelineFixture(t)
	candidate := addPlatformCandidate(t, svc)

	updated, err := svc.MarkViewed(context.Background(), candidate.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastViewedAt)
}
