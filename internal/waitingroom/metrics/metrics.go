package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the waiting room.
type Metrics struct {
	// Sessions with a mounted countdown timer
	OpenSessions prometheus.Gauge

	// First admission of a session, by trigger ("auto", "manual")
	Admissions *prometheus.CounterVec

	// Start callbacks ignored because the session was already admitted
	DuplicateStarts *prometheus.CounterVec

	// Counting -> Ready transitions observed by a mounted timer
	ReadyTransitions prometheus.Counter

	// Time from opening the waiting room to admission
	WaitDuration prometheus.Histogram

	// Live countdown listeners
	Subscribers prometheus.Gauge
}

// New registers the waiting-room metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics with reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "examroom_waiting_room_open_sessions",
			Help: "Waiting-room sessions with a mounted countdown timer",
		}),
		Admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "examroom_admissions_total",
			Help: "Candidates admitted into an exam, by start trigger",
		}, []string{"trigger"}),
		DuplicateStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "examroom_duplicate_starts_total",
			Help: "Start requests ignored because the candidate was already admitted",
		}, []string{"trigger"}),
		ReadyTransitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "examroom_ready_transitions_total",
			Help: "Countdowns that reached the exam start instant",
		}),
		WaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "examroom_wait_duration_seconds",
			Help:    "Time between opening the waiting room and admission",
			Buckets: []float64{1, 2, 5, 15, 60, 300, 900, 3600, 86400},
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "examroom_live_subscribers",
			Help: "Connected live countdown listeners",
		}),
	}
}

func (m *Metrics) SessionMounted() {
	if m != nil {
		m.OpenSessions.Inc()
	}
}

func (m *Metrics) SessionUnmounted() {
	if m != nil {
		m.OpenSessions.Dec()
	}
}

// IncrementAdmission records a first admission and how long the candidate waited.
func (m *Metrics) IncrementAdmission(trigger string, waited time.Duration) {
	if m != nil {
		m.Admissions.WithLabelValues(trigger).Inc()
		m.WaitDuration.Observe(waited.Seconds())
	}
}

func (m *Metrics) IncrementDuplicateStart(trigger string) {
	if m != nil {
		m.DuplicateStarts.WithLabelValues(trigger).Inc()
	}
}

func (m *Metrics) IncrementReady() {
	if m != nil {
		m.ReadyTransitions.Inc()
	}
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.Subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.Subscribers.Dec()
	}
}
