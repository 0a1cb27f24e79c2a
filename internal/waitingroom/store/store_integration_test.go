//go:build integration

package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/sentinel"
	"github.com/Ziel-Global/community-healers-sub001/pkg/testutil/containers"
)

func newTestSession(t *testing.T, openedAt time.Time) *models.Session {
	t.Helper()
	schedule := countdown.MustSchedule(time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC), countdown.InLocation(time.UTC))
	session, err := models.NewSession(id.NewSessionID(), id.CandidateID(uuid.New()), id.ExamID(uuid.New()), schedule, openedAt)
	require.NoError(t, err)
	return session
}

// exerciseStore runs the behaviour shared by every Store implementation.
func exerciseStore(t *testing.T, st Store) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("create find and reject duplicates", func(t *testing.T) {
		session := newTestSession(t, now)
		require.NoError(t, st.Create(ctx, session))
		require.ErrorIs(t, st.Create(ctx, session), sentinel.ErrConflict)

		found, err := st.FindByID(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, session.ID, found.ID)
		require.True(t, session.Target.Equal(found.Target))

		_, err = st.FindByID(ctx, id.NewSessionID())
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("create indexes open sessions once", func(t *testing.T) {
		session := newTestSession(t, now)
		require.NoError(t, st.Create(ctx, session))
		require.Contains(t, openIDs(t, st), session.ID)

		_, err := st.Execute(ctx, session.ID, (*models.Session).CanClose, func(m *models.Session) { m.ApplyClose(now) })
		require.NoError(t, err)
		require.ErrorIs(t, st.Create(ctx, session), sentinel.ErrConflict)
		require.NotContains(t, openIDs(t, st), session.ID)
	})

	t.Run("concurrent admissions admit once", func(t *testing.T) {
		session := newTestSession(t, now)
		require.NoError(t, st.Create(ctx, session))

		var admitted atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := st.Execute(ctx, session.ID, (*models.Session).CanAdmit, func(m *models.Session) {
					m.ApplyAdmission(countdown.TriggerAuto, now)
				})
				if err == nil {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), admitted.Load())
	})

	t.Run("closed sessions drop out of the open list", func(t *testing.T) {
		session := newTestSession(t, now)
		require.NoError(t, st.Create(ctx, session))
		_, err := st.Execute(ctx, session.ID, (*models.Session).CanClose, func(m *models.Session) { m.ApplyClose(now) })
		require.NoError(t, err)

		open, err := st.ListOpen(ctx)
		require.NoError(t, err)
		for _, s := range open {
			require.NotEqual(t, session.ID, s.ID)
		}
	})
}

func openIDs(t *testing.T, st Store) []id.SessionID {
	t.Helper()
	open, err := st.ListOpen(context.Background())
	require.NoError(t, err)
	ids := make([]id.SessionID, len(open))
	for i, s := range open {
		ids[i] = s.ID
	}
	return ids
}

func TestRedisStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	exerciseStore(t, NewRedis(rc.Client, WithSessionTTL(time.Hour)))
}

func TestPostgresStore(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	exerciseStore(t, NewPostgres(pc.Pool))
}
