package countdown

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/sentinel"
)

const (
	DefaultTickInterval   = time.Second
	DefaultAutoStartDelay = 2 * time.Second
)

// ErrNotReady is returned by StartExam before the exam start instant.
var ErrNotReady = dErrors.New(dErrors.CodeConflict, "exam is not ready yet")

// StartFunc is invoked when the candidate should proceed into the exam flow.
// It may run more than once per Timer (auto-start, then a manual start), so
// the host must guard it.
type StartFunc func(Trigger)

// Timer is the exam-availability timer of one mounted waiting room. It owns a
// repeating tick and a one-shot auto-start timer; Close releases both.
type Timer struct {
	schedule       Schedule
	onStart        StartFunc
	clock          clockwork.Clock
	tickInterval   time.Duration
	autoStartDelay time.Duration
	logger         *slog.Logger
	observer       func(Snapshot)

	mu       sync.Mutex
	snapshot Snapshot
	closed   bool

	// callbackMu serializes start callbacks with Close so that none begins
	// after Close returns.
	callbackMu sync.Mutex

	autoStart clockwork.Timer
	stopped   chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock injects the time source. Defaults to the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(t *Timer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithTickInterval sets the recomputation period. Defaults to one second.
func WithTickInterval(d time.Duration) Option {
	return func(t *Timer) {
		t.tickInterval = d
	}
}

// WithAutoStartDelay sets the delay of the one-shot auto-start. Zero disables it.
func WithAutoStartDelay(d time.Duration) Option {
	return func(t *Timer) {
		t.autoStartDelay = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Timer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithObserver registers fn to receive every ticked snapshot. fn runs on the
// tick goroutine and must not call Close.
func WithObserver(fn func(Snapshot)) Option {
	return func(t *Timer) {
		t.observer = fn
	}
}

// New mounts a timer for schedule. The first snapshot is computed before New
// returns; when the exam is already ready no tick is scheduled.
func New(schedule Schedule, onStart StartFunc, opts ...Option) (*Timer, error) {
	if schedule.Target.IsZero() {
		return nil, ErrInvalidExamDate
	}
	if onStart == nil {
		return nil, errors.New("start callback is required")
	}

	t := &Timer{
		schedule:       schedule,
		onStart:        onStart,
		clock:          clockwork.NewRealClock(),
		tickInterval:   DefaultTickInterval,
		autoStartDelay: DefaultAutoStartDelay,
		logger:         slog.New(slog.DiscardHandler),
		stopped:        make(chan struct{}),
		loopDone:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.tickInterval <= 0 {
		return nil, errors.New("tick interval must be positive")
	}
	if t.autoStartDelay < 0 {
		return nil, errors.New("auto-start delay cannot be negative")
	}

	t.snapshot = Evaluate(schedule, t.clock.Now())

	if t.autoStartDelay > 0 {
		t.autoStart = t.clock.AfterFunc(t.autoStartDelay, t.fireAutoStart)
	}

	if t.snapshot.Ready() {
		close(t.loopDone)
		t.logger.Debug("exam already ready at mount", "target", schedule.Target)
		return t, nil
	}

	ticker := t.clock.NewTicker(t.tickInterval)
	go t.run(ticker)
	return t, nil
}

// Schedule returns the schedule the timer counts down to.
func (t *Timer) Schedule() Schedule {
	return t.schedule
}

// Snapshot returns the most recently computed state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

// Done is closed once the timer has been torn down.
func (t *Timer) Done() <-chan struct{} {
	return t.stopped
}

// StartExam is the candidate's manual "start exam" action. Readiness is
// re-evaluated against the clock, so a lagging tick does not block a candidate
// who is on time.
func (t *Timer) StartExam() error {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()

	t.mu.Lock()
	closed := t.closed
	current := advance(t.schedule, t.snapshot, t.clock.Now())
	t.mu.Unlock()

	if closed {
		return sentinel.ErrClosed
	}
	if !current.Ready() {
		return ErrNotReady
	}
	t.logger.Info("manual exam start", "target", t.schedule.Target)
	t.onStart(TriggerManual)
	return nil
}

// Close unmounts the timer: both timers are cancelled and Close waits for an
// in-flight tick or callback to finish. Close is idempotent. It must not be
// called from the start callback or the observer.
func (t *Timer) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		close(t.stopped)
		if t.autoStart != nil {
			t.autoStart.Stop()
		}
		<-t.loopDone

		t.callbackMu.Lock()
		t.callbackMu.Unlock() //nolint:staticcheck // wait for an in-flight callback
	})
	return nil
}

func (t *Timer) run(ticker clockwork.Ticker) {
	defer close(t.loopDone)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopped:
			return
		case <-ticker.Chan():
			if done := t.tick(); done {
				return
			}
		}
	}
}

// tick recomputes the snapshot and reports whether ticking should stop.
func (t *Timer) tick() bool {
	now := t.clock.Now()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return true
	}
	prev := t.snapshot
	next := advance(t.schedule, prev, now)
	t.snapshot = next
	t.mu.Unlock()

	if !prev.Ready() && next.Ready() {
		t.logger.Info("exam is ready", "target", t.schedule.Target)
	}
	if t.observer != nil {
		t.observer(next)
	}
	return next.Ready()
}

func (t *Timer) fireAutoStart() {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	t.logger.Info("auto-starting exam flow", "delay", t.autoStartDelay)
	t.onStart(TriggerAuto)
}
