// Package store persists waiting-room sessions.
//
// Both implementations follow the same contract: lookups return copies,
// unknown IDs return sentinel.ErrNotFound, and Execute runs validate and
// mutate atomically with respect to other writers of the same session.
package store

import (
	"context"

	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
)

// Store is the persistence port of the waiting room.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error)
	ListOpen(ctx context.Context) ([]*models.Session, error)
}

func clone(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
