package models

import (
	"strings"
	"time"

	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
)

// examDateLayouts are accepted for exam_date, most specific first.
var examDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// OpenRequest is the body of POST /waiting-rooms.
type OpenRequest struct {
	CandidateID string `json:"candidate_id"`
	ExamID      string `json:"exam_id"`
	ExamDate    string `json:"exam_date"`
}

// OpenCommand is the validated form of OpenRequest.
type OpenCommand struct {
	CandidateID id.CandidateID
	ExamID      id.ExamID
	ExamDate    time.Time
}

// Normalize trims whitespace from all fields.
func (r *OpenRequest) Normalize() {
	r.CandidateID = strings.TrimSpace(r.CandidateID)
	r.ExamID = strings.TrimSpace(r.ExamID)
	r.ExamDate = strings.TrimSpace(r.ExamDate)
}

// Validate parses the request. Date-only values are read in loc.
func (r *OpenRequest) Validate(loc *time.Location) (OpenCommand, error) {
	candidateID, err := id.ParseCandidateID(r.CandidateID)
	if err != nil {
		return OpenCommand{}, err
	}
	examID, err := id.ParseExamID(r.ExamID)
	if err != nil {
		return OpenCommand{}, err
	}
	examDate, err := ParseExamDate(r.ExamDate, loc)
	if err != nil {
		return OpenCommand{}, err
	}
	return OpenCommand{CandidateID: candidateID, ExamID: examID, ExamDate: examDate}, nil
}

// ParseExamDate accepts RFC 3339 timestamps, local timestamps and plain dates.
func ParseExamDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "exam_date is required")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range examDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, dErrors.New(dErrors.CodeValidation, "exam_date must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}
