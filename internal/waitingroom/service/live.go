package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/sentinel"
	"github.com/Ziel-Global/community-healers-sub001/pkg/requestcontext"
)

// admission carries what the start callback needs without a store read.
type admission struct {
	sessionID   id.SessionID
	candidateID id.CandidateID
	examID      id.ExamID
	openedAt    time.Time
}

func admissionFor(session *models.Session) admission {
	return admission{
		sessionID:   session.ID,
		candidateID: session.CandidateID,
		examID:      session.ExamID,
		openedAt:    session.OpenedAt,
	}
}

// liveSession is a session with a mounted timer on this instance.
type liveSession struct {
	admission
	timer *countdown.Timer
	hub   *hub

	// mountCtx carries the request metadata of the mount for auto-start.
	mountCtx context.Context

	// manualMu serializes manual starts; manualCtx and manualErr are only
	// touched by the manual callback, which runs synchronously inside
	// timer.StartExam.
	manualMu  sync.Mutex
	manualCtx context.Context
	manualErr error
}

// startManually runs the manual start and returns the admission error of the
// callback. Losing the race to another start is not an error.
func (l *liveSession) startManually(ctx context.Context) error {
	l.manualMu.Lock()
	defer l.manualMu.Unlock()
	l.manualCtx = ctx
	l.manualErr = nil
	defer func() {
		l.manualCtx = nil
		l.manualErr = nil
	}()
	if err := l.timer.StartExam(); err != nil {
		return err
	}
	return ignoreDuplicateAdmission(l.manualErr)
}

func (l *liveSession) recordManual(trigger countdown.Trigger, err error) {
	if trigger == countdown.TriggerManual && l.manualCtx != nil {
		l.manualErr = err
	}
}

// ignoreDuplicateAdmission drops the conflict reported when the candidate was
// already admitted.
func ignoreDuplicateAdmission(err error) error {
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		return nil
	}
	return err
}

func (l *liveSession) callbackCtx(trigger countdown.Trigger) context.Context {
	if trigger == countdown.TriggerManual && l.manualCtx != nil {
		return l.manualCtx
	}
	return l.mountCtx
}

// mount starts the countdown timer of session and registers it.
func (s *Service) mount(ctx context.Context, session *models.Session, autoStartDelay time.Duration) (*liveSession, error) {
	live := &liveSession{
		admission: admissionFor(session),
		hub:       newHub(countdown.Evaluate(session.Schedule(), s.clock.Now())),
		mountCtx:  ctx,
	}
	readySeen := session.ReadyAt != nil

	timer, err := countdown.New(session.Schedule(), func(trigger countdown.Trigger) {
		cbCtx, cancel := context.WithTimeout(live.callbackCtx(trigger), admissionTimeout)
		defer cancel()
		_, err := s.admit(cbCtx, live.admission, trigger)
		live.recordManual(trigger, err)
	},
		countdown.WithClock(s.clock),
		countdown.WithTickInterval(s.tickInterval),
		countdown.WithAutoStartDelay(autoStartDelay),
		countdown.WithLogger(s.logger.With("session_id", session.ID)),
		countdown.WithObserver(func(snap countdown.Snapshot) {
			live.hub.publish(snap)
			if snap.Ready() && !readySeen {
				readySeen = true
				s.markReady(live.mountCtx, live.sessionID)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	live.timer = timer
	if snap := timer.Snapshot(); snap.Ready() {
		live.hub.publish(snap)
	}

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		_ = timer.Close()
		live.hub.close()
		return nil, sentinel.ErrClosed
	}
	s.live[session.ID] = live
	s.mu.Unlock()
	s.metrics.SessionMounted()
	return live, nil
}

func (s *Service) lookup(sessionID id.SessionID) *liveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live[sessionID]
}

// unmount tears the timer down. The session is removed from the registry
// before Close so the tick goroutine never waits on s.mu.
func (s *Service) unmount(sessionID id.SessionID) {
	s.mu.Lock()
	live, ok := s.live[sessionID]
	delete(s.live, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = live.timer.Close()
	live.hub.close()
	s.metrics.SessionUnmounted()
}

// Shutdown unmounts every live timer and refuses later mounts. Sessions stay
// open in the store so Resume can pick them up again on another instance.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	ids := make([]id.SessionID, 0, len(s.live))
	for sessionID := range s.live {
		ids = append(ids, sessionID)
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, sessionID := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.unmount(sessionID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "waiting rooms unmounted", "count", len(ids))
	return nil
}

// admit is the host guard around the start callback: the first start admits
// the candidate and issues the exam pass, later ones are counted and ignored.
func (s *Service) admit(ctx context.Context, a admission, trigger countdown.Trigger) (*models.Session, error) {
	now := s.clock.Now()

	var pass *exampass.Pass
	if s.passes != nil {
		issued, err := s.passes.Issue(exampass.Grant{
			SessionID:   a.sessionID,
			CandidateID: a.candidateID,
			ExamID:      a.examID,
			Trigger:     trigger,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to issue exam pass", "session_id", a.sessionID, "error", err)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue exam pass")
		}
		pass = &issued
	}

	session, err := s.sessions.Execute(ctx, a.sessionID,
		(*models.Session).CanAdmit,
		func(m *models.Session) {
			m.ApplyAdmission(trigger, now)
			m.Pass = pass
		},
	)
	if err != nil {
		err = translateStoreErr(err)
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementDuplicateStart(string(trigger))
			s.logger.InfoContext(ctx, "duplicate exam start ignored",
				"request_id", requestcontext.RequestID(ctx),
				"session_id", a.sessionID,
				"trigger", trigger,
			)
			return nil, err
		}
		s.logger.ErrorContext(ctx, "failed to admit candidate",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", a.sessionID,
			"trigger", trigger,
			"error", err,
		)
		return nil, err
	}

	s.metrics.IncrementAdmission(string(trigger), now.Sub(a.openedAt))
	s.logger.InfoContext(ctx, "candidate admitted",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", a.sessionID,
		"trigger", trigger,
	)
	s.emit(ctx, session, audit.ActionExamAdmitted, trigger)
	return session, nil
}

// markReady records the Counting -> Ready transition observed by a timer.
func (s *Service) markReady(ctx context.Context, sessionID id.SessionID) {
	ctx, cancel := context.WithTimeout(ctx, admissionTimeout)
	defer cancel()

	now := s.clock.Now()
	session, err := s.sessions.Execute(ctx, sessionID,
		(*models.Session).CanMarkReady,
		func(m *models.Session) { m.ApplyReady(now) },
	)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			s.logger.ErrorContext(ctx, "failed to record readiness", "session_id", sessionID, "error", err)
		}
		return
	}
	s.metrics.IncrementReady()
	s.emit(ctx, session, audit.ActionExamReady, "")
}
