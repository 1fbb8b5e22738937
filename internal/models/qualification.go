package models

import "database/sql/driver"

// QualificationType enumerates supported screening question kinds.
type QualificationType string

const (
	QualificationTypeText         QualificationType = "text"
	QualificationTypeLongText     QualificationType = "long_text"
	QualificationTypeBoolean      QualificationType = "boolean"
	QualificationTypeSingleSelect QualificationType = "single_select"
	QualificationTypeMultiSelect  QualificationType = "multi_select"
)

// IsSelect reports whether the type carries an options list.
func (t QualificationType) IsSelect() bool {
	return t == QualificationTypeSingleSelect || t == QualificationTypeMultiSelect
}

// Known reports whether the type is part of the supported vocabulary.
func (t QualificationType) Known() bool {
	switch t {
	case QualificationTypeText, QualificationTypeLongText, QualificationTypeBoolean,
		QualificationTypeSingleSelect, QualificationTypeMultiSelect:
		return true
	}
	return false
}

// Qualification is a screening question owned by an expert request.
// Select types must carry at least two options; other types carry none.
type Qualification struct {
	ID       string            `json:"id"`
	Question string            `json:"question"`
	Type     QualificationType `json:"type"`
	Required bool              `json:"required"`
	Options  []string          `json:"options,omitempty"`
}

// QualificationList is the ordered qualification set persisted as JSONB.
type QualificationList []Qualification

// Value marshals the list for persistence.
func (l QualificationList) Value() (driver.Value, error) {
	if l == nil {
		l = QualificationList{}
	}
	return jsonValue(l, "qualifications")
}

// Scan unmarshals a JSONB payload into the list.
func (l *QualificationList) Scan(value interface{}) error {
	*l = QualificationList{}
	return jsonScan(l, value, "qualifications")
}

// QualificationResponse is one candidate's answer to one qualification.
// Answer is a string, bool, or ordered list of strings depending on the
// referenced qualification's type.
type QualificationResponse struct {
	QualificationID string      `json:"qualificationId"`
	Answer          interface{} `json:"answer"`
}

// ResponseList is the ordered response set persisted as JSONB. Submissions
// replace the whole list; responses are never merged field by field.
type ResponseList []QualificationResponse

// Value marshals the list for persistence.
func (l ResponseList) Value() (driver.Value, error) {
	if l == nil {
		l = ResponseList{}
	}
	return jsonValue(l, "qualification responses")
}

// Scan unmarshals a JSONB payload into the list.
func (l *ResponseList) Scan(value interface{}) error {
	*l = ResponseList{}
	return jsonScan(l, value, "qualification responses")
}
