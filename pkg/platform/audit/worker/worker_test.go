package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	audit "github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit/store/memory"
)

type failingStore struct{ calls int }

func (f *failingStore) Append(context.Context, audit.Event) error {
	f.calls++
	return errors.New("sink down")
}

func TestWorker_DrainsUntilInboxClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 3)
	sessionID := id.SessionID(uuid.New())
	for _, action := range []audit.Action{audit.ActionWaitingRoomOpened, audit.ActionExamReady, audit.ActionExamAdmitted} {
		inbox <- audit.Event{SessionID: sessionID, Action: action}
	}
	close(inbox)

	require.NoError(t, NewWorker(store, inbox, nil).Run(context.Background()))

	events, err := store.ListBySession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestWorker_KeepsGoingAfterStoreError(t *testing.T) {
	store := &failingStore{}
	inbox := make(chan audit.Event, 2)
	inbox <- audit.Event{Action: audit.ActionExamReady}
	inbox <- audit.Event{Action: audit.ActionExamAdmitted}
	close(inbox)

	require.NoError(t, NewWorker(store, inbox, nil).Run(context.Background()))
	assert.Equal(t, 2, store.calls)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWorker(memory.NewInMemoryStore(), make(chan audit.Event), nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
