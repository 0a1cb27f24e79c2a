// Package view renders the waiting-room page.
package view

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
)

const (
	DefaultCenterLabel = "Designated Examination Center"
	DefaultTimeLabel   = "10:00 AM"
)

// Labels are the fixed exam metadata shown next to the countdown.
type Labels struct {
	Center string
	Time   string
}

func DefaultLabels() Labels {
	return Labels{Center: DefaultCenterLabel, Time: DefaultTimeLabel}
}

// Page is everything the waiting-room page shows.
type Page struct {
	SessionID string
	Snapshot  countdown.Snapshot
	Admitted  bool
	Pass      *exampass.Pass
	Labels    Labels
	StartPath string
	LivePath  string
}

// WaitingRoom renders the full page: the countdown while counting, the ready
// banner with the start action once ready, and the confirmation after admission.
func WaitingRoom(p Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Exam waiting room</title></head><body><main id="waiting-room" data-session="%s" data-live="%s">`,
			templ.EscapeString(p.SessionID), templ.EscapeString(p.LivePath)); err != nil {
			return err
		}
		var body templ.Component
		switch {
		case p.Admitted:
			body = Admitted(p.Pass)
		case p.Snapshot.Ready():
			body = ReadyBanner(p.StartPath)
		default:
			body = Countdown(p.Snapshot, p.Labels)
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		if !p.Admitted && !p.Snapshot.Ready() && p.LivePath != "" {
			if _, err := io.WriteString(w, liveScript); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// Countdown renders the four countdown fields and the exam metadata.
func Countdown(s countdown.Snapshot, labels Labels) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var r countdown.Remaining
		if s.Remaining != nil {
			r = *s.Remaining
		}
		if labels.Center == "" {
			labels.Center = DefaultCenterLabel
		}
		if labels.Time == "" {
			labels.Time = DefaultTimeLabel
		}
		_, err := fmt.Fprintf(w, `<section class="countdown" data-state="counting">`+
			`<h1>Your exam starts soon</h1>`+
			`<dl class="countdown-fields">%s%s%s%s</dl>`+
			`<dl class="exam-meta"><dt>Center</dt><dd data-label="center">%s</dd><dt>Time</dt><dd data-label="time">%s</dd></dl>`+
			`</section>`,
			field("days", "Days", r.Days),
			field("hours", "Hours", r.Hours),
			field("minutes", "Minutes", r.Minutes),
			field("seconds", "Seconds", r.Seconds),
			templ.EscapeString(labels.Center),
			templ.EscapeString(labels.Time),
		)
		return err
	})
}

// ReadyBanner renders the ready state with the manual start action.
func ReadyBanner(startPath string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<section class="ready" data-state="ready">`+
			`<h1>Your exam is ready</h1>`+
			`<form method="post" action="%s"><button type="submit">Start exam</button></form>`+
			`</section>`, templ.EscapeString(startPath))
		return err
	})
}

// Admitted renders the confirmation shown once the candidate was admitted.
func Admitted(pass *exampass.Pass) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="admitted" data-state="admitted"><h1>You have been admitted</h1>`); err != nil {
			return err
		}
		if pass != nil {
			if _, err := fmt.Fprintf(w, `<p>Exam pass <code data-pass="%s">%s</code> valid until <time datetime="%s">%s</time></p>`,
				templ.EscapeString(pass.Token),
				templ.EscapeString(pass.ID),
				pass.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
				templ.EscapeString(pass.ExpiresAt.Format("15:04 MST")),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

func field(key, label string, value int) string {
	return `<div class="field"><dt>` + label + `</dt><dd data-field="` + key + `">` + strconv.Itoa(value) + `</dd></div>`
}

// liveScript swaps in ticked values from the live stream and reloads the page
// when the exam becomes ready.
const liveScript = `<script>
(function () {
  var root = document.getElementById("waiting-room");
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(scheme + location.host + root.dataset.live);
  ws.onmessage = function (ev) {
    var snap = JSON.parse(ev.data);
    if (snap.state === "ready") { ws.close(); location.reload(); return; }
    ["days", "hours", "minutes", "seconds"].forEach(function (k) {
      var el = root.querySelector('[data-field="' + k + '"]');
      if (el && snap.remaining) { el.textContent = snap.remaining[k]; }
    });
  };
})();
</script>`
