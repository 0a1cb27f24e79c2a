package audit

import (
	"context"
	"time"

	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
)

// Category classifies audit events by retention and routing.
type Category string

const (
	// CategoryCompliance covers admission decisions that proctoring reviews rely on.
	CategoryCompliance Category = "compliance"
	// CategoryOperations covers routine waiting-room activity.
	CategoryOperations Category = "operations"
)

// Action names what happened in the waiting room.
type Action string

const (
	ActionWaitingRoomOpened Action = "waiting_room_opened"
	ActionExamReady         Action = "exam_ready"
	ActionExamAdmitted      Action = "exam_admitted"
	ActionWaitingRoomClosed Action = "waiting_room_closed"
)

var actionCategories = map[Action]Category{
	ActionExamAdmitted:      CategoryCompliance,
	ActionWaitingRoomOpened: CategoryOperations,
	ActionExamReady:         CategoryOperations,
	ActionWaitingRoomClosed: CategoryOperations,
}

// Category returns the category of a. Unknown actions are operational.
func (a Action) Category() Category {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted by the waiting room to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          string         `json:"id"`
	Category    Category       `json:"category"`
	Timestamp   time.Time      `json:"timestamp"`
	SessionID   id.SessionID   `json:"session_id"`
	CandidateID id.CandidateID `json:"candidate_id"`
	ExamID      id.ExamID      `json:"exam_id"`
	Action      Action         `json:"action"`
	// Trigger is "auto" or "manual" for admissions.
	Trigger   string `json:"trigger,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	// Device is a short browser/OS summary of the candidate's user agent.
	Device string `json:"device,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader lists the trail of one session in emission order.
type Reader interface {
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]Event, error)
}
