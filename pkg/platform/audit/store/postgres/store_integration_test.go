//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	audit "github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
	"github.com/Ziel-Global/community-healers-sub001/pkg/testutil/containers"
)

func TestStore_AppendAndList(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	db, err := sql.Open("postgres", pc.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := New(db)
	ctx := context.Background()
	sessionID := id.SessionID(uuid.New())
	base := time.Date(2026, 6, 1, 9, 58, 0, 0, time.UTC)

	events := []audit.Event{
		{ID: uuid.NewString(), Action: audit.ActionWaitingRoomOpened, Category: audit.CategoryOperations, Timestamp: base},
		{ID: uuid.NewString(), Action: audit.ActionExamAdmitted, Category: audit.CategoryCompliance, Trigger: "auto", Timestamp: base.Add(2 * time.Second)},
	}
	for _, e := range events {
		e.SessionID = sessionID
		e.CandidateID = id.CandidateID(uuid.New())
		e.ExamID = id.ExamID(uuid.New())
		require.NoError(t, store.Append(ctx, e))
		require.NoError(t, store.Append(ctx, e), "re-delivery is ignored")
	}

	all, err := store.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, audit.ActionWaitingRoomOpened, all[0].Action)

	admitted, err := store.ListBySessionActions(ctx, sessionID, audit.ActionExamAdmitted)
	require.NoError(t, err)
	require.Len(t, admitted, 1)
	assert.Equal(t, "auto", admitted[0].Trigger)
}
