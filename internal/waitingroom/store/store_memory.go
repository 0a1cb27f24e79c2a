package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/sentinel"
)

// InMemory keeps sessions in a map guarded by a mutex. Suitable for a single
// instance; use Redis when several instances serve the same candidates.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemory) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = clone(session)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(session), nil
}

// Execute holds the write lock across validate and mutate. Nothing is written
// when validate fails.
func (s *InMemory) Execute(_ context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := clone(current)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.sessions[sessionID] = working
	return clone(working), nil
}

// ListOpen returns sessions that are not closed, oldest first.
func (s *InMemory) ListOpen(_ context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	open := make([]*models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.Status.IsOpen() {
			open = append(open, clone(session))
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].OpenedAt.Before(open[j].OpenedAt) })
	return open, nil
}
