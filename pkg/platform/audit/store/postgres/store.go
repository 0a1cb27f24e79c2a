package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	audit "github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
)

// Store implements audit.Store and audit.Reader on the audit_events table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts event. Re-delivered events with the same ID are ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := event.ID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, action, session_id, candidate_id, exam_id,
			trigger, request_id, client_ip, device, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`,
		eventID,
		string(event.Category),
		string(event.Action),
		event.SessionID.String(),
		event.CandidateID.String(),
		event.ExamID.String(),
		event.Trigger,
		event.RequestID,
		event.ClientIP,
		event.Device,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	return s.ListBySessionActions(ctx, sessionID)
}

// ListBySessionActions lists the trail of a session, restricted to actions
// when any are given.
func (s *Store) ListBySessionActions(ctx context.Context, sessionID id.SessionID, actions ...audit.Action) ([]audit.Event, error) {
	filter := make([]string, len(actions))
	for i, a := range actions {
		filter[i] = string(a)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, action, session_id, candidate_id, exam_id,
		       trigger, request_id, client_ip, device, occurred_at
		FROM audit_events
		WHERE session_id = $1 AND (cardinality($2::text[]) = 0 OR action = ANY($2))
		ORDER BY occurred_at, id
	`, sessionID.String(), pq.Array(filter))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                                 audit.Event
			category, action                  string
			rawSession, rawCandidate, rawExam string
		)
		if err := rows.Scan(&e.ID, &category, &action, &rawSession, &rawCandidate, &rawExam,
			&e.Trigger, &e.RequestID, &e.ClientIP, &e.Device, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.Category(category)
		e.Action = audit.Action(action)
		if e.SessionID, err = id.ParseSessionID(rawSession); err != nil {
			return nil, err
		}
		if e.CandidateID, err = id.ParseCandidateID(rawCandidate); err != nil {
			return nil, err
		}
		if e.ExamID, err = id.ParseExamID(rawExam); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
