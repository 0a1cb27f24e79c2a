// Package service hosts waiting-room sessions: it mounts one exam-availability
// timer per open session and turns its start callback into a single admission.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/metrics"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/sentinel"
	"github.com/Ziel-Global/community-healers-sub001/pkg/requestcontext"
)

var tracer = otel.Tracer("waitingroom")

const admissionTimeout = 5 * time.Second

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error)
	ListOpen(ctx context.Context) ([]*models.Session, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuditReader is implemented by publishers that can list a session's trail.
type AuditReader interface {
	List(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error)
}

type PassIssuer interface {
	Issue(grant exampass.Grant) (exampass.Pass, error)
}

// SessionView is a session together with its live countdown state.
type SessionView struct {
	Session  *models.Session    `json:"session"`
	Snapshot countdown.Snapshot `json:"snapshot"`
	Pass     *exampass.Pass     `json:"pass,omitempty"`
}

type Service struct {
	sessions       SessionStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	passes         PassIssuer
	metrics        *metrics.Metrics
	clock          clockwork.Clock
	location       *time.Location
	startHour      int
	tickInterval   time.Duration
	autoStartDelay time.Duration

	mu           sync.RWMutex
	live         map[id.SessionID]*liveSession
	shuttingDown bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithPassIssuer(issuer PassIssuer) Option {
	return func(s *Service) {
		s.passes = issuer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithLocation sets the time zone exam dates are normalized in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.location = loc
	}
}

func WithStartHour(hour int) Option {
	return func(s *Service) {
		s.startHour = hour
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		s.tickInterval = d
	}
}

// WithAutoStartDelay sets the auto-start delay of mounted timers. Zero
// disables auto-start.
func WithAutoStartDelay(d time.Duration) Option {
	return func(s *Service) {
		s.autoStartDelay = d
	}
}

func New(sessions SessionStore, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	s := &Service{
		sessions:       sessions,
		logger:         slog.New(slog.DiscardHandler),
		clock:          clockwork.NewRealClock(),
		location:       time.Local,
		startHour:      countdown.DefaultStartHour,
		tickInterval:   countdown.DefaultTickInterval,
		autoStartDelay: countdown.DefaultAutoStartDelay,
		live:           make(map[id.SessionID]*liveSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.clock == nil {
		return nil, errors.New("clock is required")
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.tickInterval <= 0 {
		return nil, errors.New("tick interval must be positive")
	}
	if s.autoStartDelay < 0 {
		return nil, errors.New("auto-start delay cannot be negative")
	}
	if _, err := countdown.NewSchedule(s.clock.Now(), countdown.WithStartHour(s.startHour)); err != nil {
		return nil, err
	}
	return s, nil
}

// Location is the time zone exam dates are read in.
func (s *Service) Location() *time.Location {
	return s.location
}

// Open creates a waiting-room session and mounts its countdown timer.
func (s *Service) Open(ctx context.Context, cmd models.OpenCommand) (*SessionView, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.Open", trace.WithAttributes(
		attribute.String("candidate_id", cmd.CandidateID.String()),
		attribute.String("exam_id", cmd.ExamID.String()),
	))
	defer span.End()

	schedule, err := countdown.NewSchedule(cmd.ExamDate,
		countdown.WithStartHour(s.startHour),
		countdown.InLocation(s.location),
	)
	if err != nil {
		return nil, s.fail(span, err)
	}

	now := requestcontext.Now(ctx)
	session, err := models.NewSession(id.NewSessionID(), cmd.CandidateID, cmd.ExamID, schedule, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid waiting room")
	}
	initial := countdown.Evaluate(schedule, s.clock.Now())
	if initial.Ready() {
		session.ApplyReady(s.clock.Now())
	}
	span.SetAttributes(attribute.String("session_id", session.ID.String()))

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open waiting room"))
	}

	live, err := s.mount(requestcontext.Detach(ctx), session, s.autoStartDelay)
	if err != nil {
		s.abandon(ctx, session.ID, now)
		if errors.Is(err, sentinel.ErrClosed) {
			return nil, s.fail(span, dErrors.New(dErrors.CodeUnavailable, "waiting room service is shutting down"))
		}
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start countdown"))
	}

	s.logger.InfoContext(ctx, "waiting room opened",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID,
		"target", schedule.Target,
		"state", initial.State,
	)
	s.emit(ctx, session, audit.ActionWaitingRoomOpened, "")
	if initial.Ready() {
		s.emit(ctx, session, audit.ActionExamReady, "")
	}

	return &SessionView{Session: session, Snapshot: live.timer.Snapshot()}, nil
}

// abandon closes a session that was stored but never mounted, so Resume does
// not pick it up as a waiting room nobody opened.
func (s *Service) abandon(ctx context.Context, sessionID id.SessionID, now time.Time) {
	_, err := s.sessions.Execute(ctx, sessionID,
		(*models.Session).CanClose,
		func(m *models.Session) { m.ApplyClose(now) },
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to close unmounted waiting room",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
			"error", err,
		)
	}
}

// Get returns the session and its countdown state.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*SessionView, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.Get", trace.WithAttributes(attribute.String("session_id", sessionID.String())))
	defer span.End()

	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return s.view(session), nil
}

// StartExam is the candidate's manual "start exam" action. It is rejected
// while the exam is not ready and is a no-op once the candidate is admitted.
func (s *Service) StartExam(ctx context.Context, sessionID id.SessionID) (*SessionView, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.StartExam", trace.WithAttributes(attribute.String("session_id", sessionID.String())))
	defer span.End()

	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if session.Status == models.StatusClosed {
		return nil, s.fail(span, dErrors.New(dErrors.CodeConflict, "waiting room is closed"))
	}
	if session.IsAdmitted() {
		s.metrics.IncrementDuplicateStart(string(countdown.TriggerManual))
		s.logger.InfoContext(ctx, "exam start repeated after admission",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
		)
		return s.view(session), nil
	}

	if live := s.lookup(sessionID); live != nil {
		err = live.startManually(ctx)
	} else {
		err = s.startUnmounted(ctx, session)
	}
	switch {
	case errors.Is(err, sentinel.ErrClosed), dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return nil, s.fail(span, dErrors.New(dErrors.CodeConflict, "waiting room is closed"))
	case err != nil:
		return nil, s.fail(span, err)
	}

	admitted, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !admitted.IsAdmitted() {
		return nil, s.fail(span, dErrors.New(dErrors.CodeConflict, "waiting room was modified concurrently"))
	}
	return s.view(admitted), nil
}

// startUnmounted admits a session whose timer is not mounted on this instance,
// for example after a restart. Readiness is evaluated against the clock.
func (s *Service) startUnmounted(ctx context.Context, session *models.Session) error {
	snap := countdown.Evaluate(session.Schedule(), s.clock.Now())
	if !snap.Ready() && session.ReadyAt == nil {
		return countdown.ErrNotReady
	}
	_, err := s.admit(ctx, admissionFor(session), countdown.TriggerManual)
	return ignoreDuplicateAdmission(err)
}

// Close unmounts the session's timer and marks the session closed.
func (s *Service) Close(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.Close", trace.WithAttributes(attribute.String("session_id", sessionID.String())))
	defer span.End()

	s.unmount(sessionID)

	now := requestcontext.Now(ctx)
	session, err := s.sessions.Execute(ctx, sessionID,
		(*models.Session).CanClose,
		func(m *models.Session) { m.ApplyClose(now) },
	)
	if err != nil {
		return nil, s.fail(span, translateStoreErr(err))
	}

	s.logger.InfoContext(ctx, "waiting room closed",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sessionID,
		"status_before_close", statusBeforeClose(session),
	)
	s.emit(ctx, session, audit.ActionWaitingRoomClosed, "")
	return session, nil
}

// Subscribe streams countdown snapshots of a session. The channel receives the
// current snapshot first and is closed after the ready snapshot, when the
// session is closed, or when ctx is done.
func (s *Service) Subscribe(ctx context.Context, sessionID id.SessionID) (<-chan countdown.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.Subscribe", trace.WithAttributes(attribute.String("session_id", sessionID.String())))
	defer span.End()

	live := s.lookup(sessionID)
	span.SetAttributes(attribute.Bool("mounted", live != nil))
	if live == nil {
		session, err := s.find(ctx, sessionID)
		if err != nil {
			return nil, s.fail(span, err)
		}
		ch := make(chan countdown.Snapshot, 1)
		ch <- s.view(session).Snapshot
		close(ch)
		return ch, nil
	}

	subID, ch := live.hub.subscribe()
	if subID == 0 {
		return ch, nil
	}
	s.metrics.SubscriberAdded()
	go func() {
		defer s.metrics.SubscriberRemoved()
		select {
		case <-ctx.Done():
			live.hub.unsubscribe(subID)
		case <-live.hub.done:
		}
	}()
	return ch, nil
}

// Trail lists the audit events of a session.
func (s *Service) Trail(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.Trail", trace.WithAttributes(attribute.String("session_id", sessionID.String())))
	defer span.End()

	if _, err := s.find(ctx, sessionID); err != nil {
		return nil, s.fail(span, err)
	}
	reader, ok := s.auditPublisher.(AuditReader)
	if !ok {
		return nil, s.fail(span, dErrors.New(dErrors.CodeUnavailable, "audit trail is not available"))
	}
	events, err := reader.List(ctx, sessionID)
	if errors.Is(err, audit.ErrNotReadable) {
		return nil, s.fail(span, dErrors.New(dErrors.CodeUnavailable, "audit trail is not available"))
	}
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail"))
	}
	span.SetAttributes(attribute.Int("events", len(events)))
	return events, nil
}

// Resume remounts timers for sessions still waiting to be admitted, typically
// after a restart. Auto-start belongs to the original mount and is not
// re-armed. It returns the number of mounted sessions.
func (s *Service) Resume(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "waitingroom.Resume")
	defer span.End()

	open, err := s.sessions.ListOpen(ctx)
	if err != nil {
		return 0, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list open waiting rooms"))
	}
	mounted := 0
	for _, session := range open {
		if session.IsAdmitted() || s.lookup(session.ID) != nil {
			continue
		}
		if _, err := s.mount(requestcontext.Detach(ctx), session, 0); err != nil {
			s.logger.ErrorContext(ctx, "failed to remount waiting room", "session_id", session.ID, "error", err)
			continue
		}
		mounted++
	}
	span.SetAttributes(attribute.Int("mounted", mounted), attribute.Int("open", len(open)))
	s.logger.InfoContext(ctx, "waiting rooms resumed", "mounted", mounted, "open", len(open))
	return mounted, nil
}

func (s *Service) find(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return session, nil
}

func (s *Service) view(session *models.Session) *SessionView {
	v := &SessionView{Session: session, Pass: session.Pass}
	if live := s.lookup(session.ID); live != nil {
		v.Snapshot = live.timer.Snapshot()
		return v
	}
	v.Snapshot = countdown.Evaluate(session.Schedule(), s.clock.Now())
	if session.ReadyAt != nil && !v.Snapshot.Ready() {
		v.Snapshot = countdown.Snapshot{Now: v.Snapshot.Now, Target: session.Target, State: countdown.StateReady}
	}
	return v
}

func (s *Service) emit(ctx context.Context, session *models.Session, action audit.Action, trigger countdown.Trigger) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp:   s.clock.Now(),
		SessionID:   session.ID,
		CandidateID: session.CandidateID,
		ExamID:      session.ExamID,
		Action:      action,
		Trigger:     string(trigger),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"session_id", session.ID,
			"error", err,
		)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "waiting room not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "waiting room was modified concurrently")
	case dErrors.HasCode(err, dErrors.CodeConflict), dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "waiting room store failure")
	}
}

func statusBeforeClose(session *models.Session) string {
	switch {
	case session.IsAdmitted():
		return string(models.StatusAdmitted)
	case session.ReadyAt != nil:
		return string(models.StatusReady)
	default:
		return string(models.StatusWaiting)
	}
}
