package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
)

// Typed identifiers keep session, candidate and exam IDs from being mixed up
// at compile time. All of them are non-nil UUIDs.
type (
	SessionID   uuid.UUID
	CandidateID uuid.UUID
	ExamID      uuid.UUID
)

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// NewSessionID returns a fresh random session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session_id", s)
	return SessionID(u), err
}

func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id SessionID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText reads an empty value as the nil ID.
func (id *SessionID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = SessionID{}
		return nil
	}
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseCandidateID(s string) (CandidateID, error) {
	u, err := parseUUID("candidate_id", s)
	return CandidateID(u), err
}

func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id CandidateID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id CandidateID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText reads an empty value as the nil ID.
func (id *CandidateID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = CandidateID{}
		return nil
	}
	parsed, err := ParseCandidateID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseExamID(s string) (ExamID, error) {
	u, err := parseUUID("exam_id", s)
	return ExamID(u), err
}

func (id ExamID) String() string { return uuid.UUID(id).String() }
func (id ExamID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ExamID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText reads an empty value as the nil ID.
func (id *ExamID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = ExamID{}
		return nil
	}
	parsed, err := ParseExamID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
