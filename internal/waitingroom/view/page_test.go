package view

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
)

var target = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func render(t *testing.T, p Page) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WaitingRoom(p).Render(context.Background(), &buf))
	return buf.String()
}

func TestWaitingRoom_Counting(t *testing.T) {
	snap := countdown.Evaluate(countdown.Schedule{Target: target}, target.Add(-(26*time.Hour + 3*time.Minute + 4*time.Second)))
	html := render(t, Page{SessionID: "s-1", Snapshot: snap, Labels: DefaultLabels(), StartPath: "/start", LivePath: "/live"})

	assert.Contains(t, html, `data-state="counting"`)
	assert.Contains(t, html, `<dd data-field="days">1</dd>`)
	assert.Contains(t, html, `<dd data-field="hours">2</dd>`)
	assert.Contains(t, html, `<dd data-field="minutes">3</dd>`)
	assert.Contains(t, html, `<dd data-field="seconds">4</dd>`)
	assert.Contains(t, html, DefaultCenterLabel)
	assert.Contains(t, html, DefaultTimeLabel)
	assert.Contains(t, html, "<script>")
	assert.NotContains(t, html, "Start exam")
}

func TestWaitingRoom_Ready(t *testing.T) {
	snap := countdown.Evaluate(countdown.Schedule{Target: target}, target)
	html := render(t, Page{Snapshot: snap, Labels: DefaultLabels(), StartPath: "/waiting-rooms/s-1/start", LivePath: "/live"})

	assert.Contains(t, html, `data-state="ready"`)
	assert.Contains(t, html, `action="/waiting-rooms/s-1/start"`)
	assert.Contains(t, html, "Start exam")
	assert.NotContains(t, html, `data-field="days"`)
	assert.NotContains(t, html, "<script>")
}

func TestWaitingRoom_Admitted(t *testing.T) {
	snap := countdown.Evaluate(countdown.Schedule{Target: target}, target.Add(-time.Hour))
	html := render(t, Page{
		Snapshot: snap,
		Admitted: true,
		Pass:     &exampass.Pass{ID: "pass-1", Token: "tok", ExpiresAt: target.Add(4 * time.Hour)},
	})

	assert.Contains(t, html, `data-state="admitted"`)
	assert.Contains(t, html, "pass-1")
	assert.NotContains(t, html, "Start exam")
}

func TestCountdown_EscapesLabels(t *testing.T) {
	var buf bytes.Buffer
	snap := countdown.Evaluate(countdown.Schedule{Target: target}, target.Add(-time.Minute))
	require.NoError(t, Countdown(snap, Labels{Center: `<b>Hall "A"</b>`, Time: "09:30"}).Render(context.Background(), &buf))

	assert.Contains(t, buf.String(), "&lt;b&gt;Hall &#34;A&#34;&lt;/b&gt;")
	assert.Contains(t, buf.String(), "09:30")
}
