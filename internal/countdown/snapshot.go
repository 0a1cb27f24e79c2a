package countdown

import "time"

// State is the readiness of an exam. Ready is terminal.
type State string

const (
	StateCounting State = "counting"
	StateReady    State = "ready"
)

// Trigger says which path asked to start the exam.
type Trigger string

const (
	TriggerAuto   Trigger = "auto"
	TriggerManual Trigger = "manual"
)

func (t Trigger) Valid() bool {
	return t == TriggerAuto || t == TriggerManual
}

// Snapshot is the derived readiness state at a point in time. Remaining is nil
// once the exam is ready.
type Snapshot struct {
	Now       time.Time  `json:"now"`
	Target    time.Time  `json:"target"`
	State     State      `json:"state"`
	Remaining *Remaining `json:"remaining,omitempty"`
}

// Ready reports whether the exam start instant has been reached.
func (s Snapshot) Ready() bool {
	return s.State == StateReady
}

// Evaluate recomputes readiness for now. It holds no state: callers pass the
// current instant on every tick instead of decrementing a counter.
func Evaluate(schedule Schedule, now time.Time) Snapshot {
	diff := schedule.Target.Sub(now)
	if diff <= 0 {
		return Snapshot{Now: now, Target: schedule.Target, State: StateReady}
	}
	remaining := Decompose(diff)
	return Snapshot{Now: now, Target: schedule.Target, State: StateCounting, Remaining: &remaining}
}

// advance evaluates now on top of prev, keeping Ready latched even if the
// clock steps backwards.
func advance(schedule Schedule, prev Snapshot, now time.Time) Snapshot {
	next := Evaluate(schedule, now)
	if prev.Ready() && !next.Ready() {
		return Snapshot{Now: now, Target: schedule.Target, State: StateReady}
	}
	return next
}
