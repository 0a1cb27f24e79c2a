package audit

import (
	"context"
	"errors"

	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
)

// ErrNotReadable is returned when no configured store can list events.
var ErrNotReadable = errors.New("audit store does not support reads")

// Fanout appends every event to all stores. Errors are joined; a failing sink
// does not stop the others.
type Fanout []Store

func (f Fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListBySession reads from the first store that supports reading.
func (f Fanout) ListBySession(ctx context.Context, sessionID id.SessionID) ([]Event, error) {
	for _, s := range f {
		if r, ok := s.(Reader); ok {
			return r.ListBySession(ctx, sessionID)
		}
	}
	return nil, ErrNotReadable
}
