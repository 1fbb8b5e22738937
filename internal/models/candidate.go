package models

import (
	"database/sql/driver"
	"time"
)

// ActorPublicLink is the audit-trail sentinel recorded when a change was made
// through the unauthenticated public application surface.
const ActorPublicLink = "public_link"

// CandidateSource records where a candidate came from. Set at creation,
// immutable afterwards.
type CandidateSource string

const (
	SourcePlatform   CandidateSource = "platform"
	SourceLinkedIn   CandidateSource = "linkedin"
	SourceReferral   CandidateSource = "referral"
	SourcePublicLink CandidateSource = "public_link"
)

// Known reports whether the source is part of the supported vocabulary.
func (s CandidateSource) Known() bool {
	switch s {
	case SourcePlatform, SourceLinkedIn, SourceReferral, SourcePublicLink:
		return true
	}
	return false
}

// CandidateStatus is a stage of the sourcing pipeline.
type CandidateStatus string

const (
	StatusIdentified CandidateStatus = "identified"
	StatusContacted  CandidateStatus = "contacted"
	StatusInterested CandidateStatus = "interested"
	StatusVetting    CandidateStatus = "vetting"
	StatusMatched    CandidateStatus = "matched"
	StatusRejected   CandidateStatus = "rejected"
)

// Known reports whether the status is part of the supported vocabulary.
func (s CandidateStatus) Known() bool {
	switch s {
	case StatusIdentified, StatusContacted, StatusInterested, StatusVetting,
		StatusMatched, StatusRejected:
		return true
	}
	return false
}

// forwardTransitions is the happy-path table used by the guarded transition
// operation. Rejection is reachable from any state; the lenient SetStatus
// ignores this table entirely.
var forwardTransitions = map[CandidateStatus][]CandidateStatus{
	StatusIdentified: {StatusContacted, StatusRejected},
	StatusContacted:  {StatusInterested, StatusRejected},
	StatusInterested: {StatusVetting, StatusRejected},
	StatusVetting:    {StatusMatched, StatusRejected},
	StatusMatched:    {StatusRejected},
	StatusRejected:   {},
}

// CanAdvanceTo reports whether the guarded transition table allows moving
// from s to next.
func (s CandidateStatus) CanAdvanceTo(next CandidateStatus) bool {
	for _, allowed := range forwardTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ExternalProfile identifies a candidate who is not a platform member.
type ExternalProfile struct {
	Name         string  `json:"name"`
	Email        *string `json:"email,omitempty"`
	LinkedInURL  *string `json:"linkedinUrl,omitempty"`
	Headline     *string `json:"headline,omitempty"`
	LinkedInData *string `json:"linkedinData,omitempty"`
}

// Value marshals the profile for persistence.
func (p ExternalProfile) Value() (driver.Value, error) {
	return jsonValue(p, "external profile")
}

// Scan unmarshals a JSONB payload into the profile.
func (p *ExternalProfile) Scan(value interface{}) error {
	*p = ExternalProfile{}
	return jsonScan(p, value, "external profile")
}

// StatusChange is one audit entry in a candidate's status history.
type StatusChange struct {
	Status    CandidateStatus `json:"status"`
	ChangedBy string          `json:"changedBy"`
	ChangedAt time.Time       `json:"changedAt"`
	Note      *string         `json:"note,omitempty"`
}

// StatusHistory is the append-only, ordered transition log persisted as
// JSONB. Entries are never mutated or reordered.
type StatusHistory []StatusChange

// Value marshals the history for persistence.
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		h = StatusHistory{}
	}
	return jsonValue(h, "status history")
}

// Scan unmarshals a JSONB payload into the history.
func (h *StatusHistory) Scan(value interface{}) error {
	*h = StatusHistory{}
	return jsonScan(h, value, "status history")
}

// Note is an annotation on a candidate. Internal notes are visible to the
// requesting client's team; client notes to the client audience.
type Note struct {
	AuthorID  string    `json:"authorId"`
	Author    string    `json:"author"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// NoteList is an append-only note collection persisted as JSONB.
type NoteList []Note

// Value marshals the list for persistence.
func (l NoteList) Value() (driver.Value, error) {
	if l == nil {
		l = NoteList{}
	}
	return jsonValue(l, "notes")
}

// Scan unmarshals a JSONB payload into the list.
func (l *NoteList) Scan(value interface{}) error {
	*l = NoteList{}
	return jsonScan(l, value, "notes")
}

// ExpertCandidate is one prospective expert attached to one request. Exactly
// one of ExpertID or ExternalProfile identifies the subject.
type ExpertCandidate struct {
	ID                     string           `db:"id" json:"id"`
	RequestID              string           `db:"request_id" json:"request_id"`
	ExpertID               *string          `db:"expert_id" json:"expert_id,omitempty"`
	ExternalProfile        *ExternalProfile `db:"external_profile" json:"external_profile,omitempty"`
	Source                 CandidateSource  `db:"source" json:"source"`
	Status                 CandidateStatus  `db:"status" json:"status"`
	StatusHistory          StatusHistory    `db:"status_history" json:"status_history"`
	QualificationResponses ResponseList     `db:"qualification_responses" json:"qualification_responses"`
	InternalNotes          NoteList         `db:"internal_notes" json:"internal_notes"`
	ClientNotes            NoteList         `db:"client_notes" json:"client_notes,omitempty"`
	ContactedAt            *time.Time       `db:"contacted_at" json:"contacted_at,omitempty"`
	RespondedAt            *time.Time       `db:"responded_at" json:"responded_at,omitempty"`
	LastViewedAt           *time.Time       `db:"last_viewed_at" json:"last_viewed_at,omitempty"`
	AddedByID              string           `db:"added_by_id" json:"added_by_id"`
	AddedBy                string           `db:"added_by" json:"added_by"`
	CreatedAt              time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time        `db:"updated_at" json:"updated_at"`
}

// DisplayName returns a human label for the candidate: the external
// profile's name when present, otherwise the linked expert id.
func (c *ExpertCandidate) DisplayName() string {
	if c.ExternalProfile != nil && c.ExternalProfile.Name != "" {
		return c.ExternalProfile.Name
	}
	if c.ExpertID != nil {
		return *c.ExpertID
	}
	return c.ID
}

// CandidateFilter narrows candidate listings for one request.
type CandidateFilter struct {
	RequestID string
	Status    string
	Source    string
}
