package models

import (
	"database/sql/driver"
	"time"
)

// RequestState tracks the expert request lifecycle.
type RequestState string

const (
	RequestStateDraft  RequestState = "draft"
	RequestStateOpen   RequestState = "open"
	RequestStateClosed RequestState = "closed"
)

// ClearanceLevel is an ordered government security-clearance tier.
type ClearanceLevel string

const (
	ClearanceNone        ClearanceLevel = "none"
	ClearancePublicTrust ClearanceLevel = "public-trust"
	ClearanceSecret      ClearanceLevel = "secret"
	ClearanceTopSecret   ClearanceLevel = "top-secret"
	ClearanceTSSCI       ClearanceLevel = "ts-sci"
)

var clearanceOrder = map[ClearanceLevel]int{
	ClearanceNone:        0,
	ClearancePublicTrust: 1,
	ClearanceSecret:      2,
	ClearanceTopSecret:   3,
	ClearanceTSSCI:       4,
}

// Tier returns the numeric tier of the clearance, -1 for unknown values.
func (c ClearanceLevel) Tier() int {
	tier, ok := clearanceOrder[c]
	if !ok {
		return -1
	}
	return tier
}

// UserSnapshot is the creator identity frozen at request creation. It is
// never re-resolved against the user directory.
type UserSnapshot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Value marshals the snapshot for persistence.
func (s UserSnapshot) Value() (driver.Value, error) {
	return jsonValue(s, "creator snapshot")
}

// Scan unmarshals a JSONB payload into the snapshot.
func (s *UserSnapshot) Scan(value interface{}) error {
	*s = UserSnapshot{}
	return jsonScan(s, value, "creator snapshot")
}

// StringList is an ordered list of strings persisted as JSONB.
type StringList []string

// Value marshals the list for persistence.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return jsonValue(l, "string list")
}

// Scan unmarshals a JSONB payload into the list.
func (l *StringList) Scan(value interface{}) error {
	*l = StringList{}
	return jsonScan(l, value, "string list")
}

// ExpertRequest is a client's posted need for an expert. CandidateCount and
// MatchedCount are derived from the candidate set and recomputed inside the
// same transaction as the write that changes them.
type ExpertRequest struct {
	ID                string            `db:"id" json:"id"`
	Slug              string            `db:"slug" json:"slug"`
	CreatedByID       string            `db:"created_by_id" json:"created_by_id"`
	CreatedBy         UserSnapshot      `db:"created_by" json:"created_by"`
	Title             string            `db:"title" json:"title"`
	Description       string            `db:"description" json:"description"`
	Agency            *string           `db:"agency" json:"agency,omitempty"`
	ContractType      *string           `db:"contract_type" json:"contract_type,omitempty"`
	NAICSCode         *string           `db:"naics_code" json:"naics_code,omitempty"`
	Deadline          *time.Time        `db:"deadline" json:"deadline,omitempty"`
	RequiredExpertise StringList        `db:"required_expertise" json:"required_expertise"`
	ClearanceRequired *ClearanceLevel   `db:"clearance_required" json:"clearance_required,omitempty"`
	Qualifications    QualificationList `db:"qualifications" json:"qualifications"`
	State             RequestState      `db:"state" json:"state"`
	CloseReason       *string           `db:"close_reason" json:"close_reason,omitempty"`
	IsPublic          bool              `db:"is_public" json:"is_public"`
	CandidateCount    int               `db:"candidate_count" json:"candidate_count"`
	MatchedCount      int               `db:"matched_count" json:"matched_count"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// RequestFilter encapsulates allowed search parameters for listing requests.
type RequestFilter struct {
	State     string
	Search    string
	CreatedBy string
	Public    *bool
}

// PublicRequestView is the sanitized projection served on the public intake
// surface. Ownership, visibility flags and aggregates are stripped.
type PublicRequestView struct {
	ID                string            `json:"id"`
	Slug              string            `json:"slug"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	Agency            *string           `json:"agency,omitempty"`
	ContractType      *string           `json:"contract_type,omitempty"`
	Deadline          *time.Time        `json:"deadline,omitempty"`
	RequiredExpertise StringList        `json:"required_expertise"`
	ClearanceRequired *ClearanceLevel   `json:"clearance_required,omitempty"`
	Qualifications    QualificationList `json:"qualifications"`
}

// PublicView builds the sanitized projection of the request.
func (r *ExpertRequest) PublicView() PublicRequestView {
	return PublicRequestView{
		ID:                r.ID,
		Slug:              r.Slug,
		Title:             r.Title,
		Description:       r.Description,
		Agency:            r.Agency,
		ContractType:      r.ContractType,
		Deadline:          r.Deadline,
		RequiredExpertise: r.RequiredExpertise,
		ClearanceRequired: r.ClearanceRequired,
		Qualifications:    r.Qualifications,
	}
}

// RequestStats is the per-status candidate funnel for one request.
type RequestStats struct {
	RequestID      string         `json:"request_id"`
	CandidateCount int            `json:"candidate_count"`
	MatchedCount   int            `json:"matched_count"`
	ByStatus       map[string]int `json:"by_status"`
}
