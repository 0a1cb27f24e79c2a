package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
)

func drain(ch <-chan countdown.Snapshot) []countdown.Snapshot {
	var out []countdown.Snapshot
	for s := range ch {
		out = append(out, s)
	}
	return out
}

func TestHub_DeliversLatestThenTicksUntilReady(t *testing.T) {
	target := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	schedule := countdown.Schedule{ExamDate: target, Target: target}

	h := newHub(countdown.Evaluate(schedule, target.Add(-2*time.Second)))
	_, ch := h.subscribe()

	h.publish(countdown.Evaluate(schedule, target.Add(-time.Second)))
	h.publish(countdown.Evaluate(schedule, target))

	got := drain(ch)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].Remaining.Seconds)
	assert.Equal(t, 1, got[1].Remaining.Seconds)
	assert.True(t, got[2].Ready())

	select {
	case <-h.done:
	default:
		t.Fatal("hub should be closed after the ready snapshot")
	}
}

func TestHub_SubscribeAfterClose(t *testing.T) {
	target := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	h := newHub(countdown.Evaluate(countdown.Schedule{Target: target}, target))
	h.close()
	h.close()

	_, ch := h.subscribe()
	got := drain(ch)
	require.Len(t, got, 1)
	assert.True(t, got[0].Ready())
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	target := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	h := newHub(countdown.Evaluate(countdown.Schedule{Target: target}, target.Add(-time.Hour)))

	subID, ch := h.subscribe()
	h.unsubscribe(subID)
	h.unsubscribe(subID)

	assert.Len(t, drain(ch), 1)
}

func TestHub_SlowListenerDoesNotBlock(t *testing.T) {
	target := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	schedule := countdown.Schedule{Target: target}
	h := newHub(countdown.Evaluate(schedule, target.Add(-time.Hour)))
	h.subscribe()

	done := make(chan struct{})
	go func() {
		for i := 10; i > 0; i-- {
			h.publish(countdown.Evaluate(schedule, target.Add(-time.Duration(i)*time.Second)))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow listener")
	}
}

func TestHub_SlowListenerStillGetsReady(t *testing.T) {
	target := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	schedule := countdown.Schedule{Target: target}
	h := newHub(countdown.Evaluate(schedule, target.Add(-time.Hour)))
	_, ch := h.subscribe()

	for i := 10; i > 0; i-- {
		h.publish(countdown.Evaluate(schedule, target.Add(-time.Duration(i)*time.Second)))
	}
	h.publish(countdown.Evaluate(schedule, target))

	got := drain(ch)
	require.NotEmpty(t, got)
	assert.True(t, got[len(got)-1].Ready())
}
