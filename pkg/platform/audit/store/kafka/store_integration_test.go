//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	audit "github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
	"github.com/Ziel-Global/community-healers-sub001/pkg/testutil/containers"
)

func TestStore_RoundTripThroughBroker(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	const topic = "examroom.audit"

	producer, err := kgo.NewClient(kgo.SeedBrokers(rp.Broker), kgo.AllowAutoTopicCreation())
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	sessionID := id.SessionID(uuid.New())
	require.NoError(t, New(producer, topic).Append(context.Background(), audit.Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Action:    audit.ActionExamAdmitted,
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.NotEmpty(t, records)
	var decoded audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &decoded))
	assert.Equal(t, sessionID, decoded.SessionID)
}
