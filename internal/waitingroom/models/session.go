package models

import (
	"time"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
)

// Status is the lifecycle of a waiting-room session.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusReady    Status = "ready"
	StatusAdmitted Status = "admitted"
	StatusClosed   Status = "closed"
)

// CanTransitionTo encodes the allowed transitions:
//
//	waiting -> ready -> admitted -> closed
//	waiting -> admitted (auto-start before the exam is ready)
//	waiting, ready -> closed
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusReady || next == StatusAdmitted || next == StatusClosed
	case StatusReady:
		return next == StatusAdmitted || next == StatusClosed
	case StatusAdmitted:
		return next == StatusClosed
	default:
		return false
	}
}

func (s Status) IsOpen() bool {
	return s != StatusClosed
}

// Session is one candidate's stay in the waiting room for one exam.
//
// Invariants:
//   - Target is ExamDate normalized to the exam start hour and never changes
//   - AdmittedAt is set exactly once; Trigger records which path admitted
//   - ReadyAt, once set, is never cleared
type Session struct {
	ID          id.SessionID      `json:"id"`
	CandidateID id.CandidateID    `json:"candidate_id"`
	ExamID      id.ExamID         `json:"exam_id"`
	ExamDate    time.Time         `json:"exam_date"`
	Target      time.Time         `json:"target"`
	Status      Status            `json:"status"`
	OpenedAt    time.Time         `json:"opened_at"`
	ReadyAt     *time.Time        `json:"ready_at,omitempty"`
	AdmittedAt  *time.Time        `json:"admitted_at,omitempty"`
	Trigger     countdown.Trigger `json:"trigger,omitempty"`
	ClosedAt    *time.Time        `json:"closed_at,omitempty"`
	Pass        *exampass.Pass    `json:"pass,omitempty"`
}

// NewSession builds a waiting session for schedule.
func NewSession(sessionID id.SessionID, candidateID id.CandidateID, examID id.ExamID, schedule countdown.Schedule, now time.Time) (*Session, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session id cannot be nil")
	}
	if candidateID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "candidate id cannot be nil")
	}
	if examID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "exam id cannot be nil")
	}
	if schedule.Target.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "exam schedule is required")
	}
	return &Session{
		ID:          sessionID,
		CandidateID: candidateID,
		ExamID:      examID,
		ExamDate:    schedule.ExamDate,
		Target:      schedule.Target,
		Status:      StatusWaiting,
		OpenedAt:    now,
	}, nil
}

func (s *Session) IsAdmitted() bool {
	return s.AdmittedAt != nil
}

// CanMarkReady checks whether the session may record readiness.
func (s *Session) CanMarkReady() error {
	if s.ReadyAt != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "session already ready")
	}
	if s.Status == StatusClosed {
		return dErrors.New(dErrors.CodeInvariantViolation, "session is closed")
	}
	return nil
}

// ApplyReady records readiness. An admitted session keeps its status.
func (s *Session) ApplyReady(now time.Time) {
	s.ReadyAt = &now
	if s.Status.CanTransitionTo(StatusReady) {
		s.Status = StatusReady
	}
}

// CanAdmit checks whether the candidate may be admitted into the exam.
func (s *Session) CanAdmit() error {
	if s.IsAdmitted() {
		return dErrors.New(dErrors.CodeConflict, "candidate already admitted")
	}
	if !s.Status.CanTransitionTo(StatusAdmitted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "session is closed")
	}
	return nil
}

// ApplyAdmission admits the candidate. Call CanAdmit first.
func (s *Session) ApplyAdmission(trigger countdown.Trigger, now time.Time) {
	s.Status = StatusAdmitted
	s.AdmittedAt = &now
	s.Trigger = trigger
}

// Schedule rebuilds the countdown schedule the session was opened with.
func (s *Session) Schedule() countdown.Schedule {
	return countdown.Schedule{ExamDate: s.ExamDate, Target: s.Target}
}

// CanClose checks whether the session may be closed.
func (s *Session) CanClose() error {
	if s.Status == StatusClosed {
		return dErrors.New(dErrors.CodeConflict, "session already closed")
	}
	return nil
}

// ApplyClose closes the session. Call CanClose first.
func (s *Session) ApplyClose(now time.Time) {
	s.Status = StatusClosed
	s.ClosedAt = &now
}
