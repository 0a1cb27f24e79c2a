package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
)

// spanRecorder is a tracer provider that keeps every span it starts.
type spanRecorder struct {
	noop.TracerProvider
	mu    sync.Mutex
	spans []*recordedSpan
}

var (
	recorderOnce sync.Once
	recorder     = &spanRecorder{}
)

// installSpanRecorder routes the package tracer to the shared recorder.
func installSpanRecorder() *spanRecorder {
	recorderOnce.Do(func() { otel.SetTracerProvider(recorder) })
	recorder.mu.Lock()
	recorder.spans = nil
	recorder.mu.Unlock()
	return recorder
}

func (r *spanRecorder) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return recordingTracer{rec: r}
}

func (r *spanRecorder) last(name string) *recordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.spans) - 1; i >= 0; i-- {
		if r.spans[i].name == name {
			return r.spans[i]
		}
	}
	return nil
}

type recordingTracer struct {
	noop.Tracer
	rec *spanRecorder
}

func (t recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	span := &recordedSpan{name: name}
	t.rec.mu.Lock()
	t.rec.spans = append(t.rec.spans, span)
	t.rec.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

type recordedSpan struct {
	noop.Span
	mu     sync.Mutex
	name   string
	errs   []error
	status codes.Code
	ended  bool
}

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *recordedSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *ServiceSuite) requireFailedSpan(rec *spanRecorder, name string, code dErrors.Code) {
	span := rec.last(name)
	s.Require().NotNil(span, name)
	span.mu.Lock()
	defer span.mu.Unlock()
	s.True(span.ended, name)
	s.Equal(codes.Error, span.status, name)
	s.Require().Len(span.errs, 1, name)
	s.True(dErrors.HasCode(span.errs[0], code), name)
}

func (s *ServiceSuite) TestFailuresAreRecordedOnSpans() {
	rec := installSpanRecorder()
	ctx := context.Background()
	unknown := id.NewSessionID()

	_, err := s.service.Subscribe(ctx, unknown)
	s.Require().Error(err)
	s.requireFailedSpan(rec, "waitingroom.Subscribe", dErrors.CodeNotFound)

	_, err = s.service.Trail(ctx, unknown)
	s.Require().Error(err)
	s.requireFailedSpan(rec, "waitingroom.Trail", dErrors.CodeNotFound)

	_, err = s.service.Open(ctx, models.OpenCommand{CandidateID: s.candidate, ExamID: s.exam, ExamDate: time.Time{}})
	s.Require().Error(err)
	span := rec.last("waitingroom.Open")
	s.Require().NotNil(span)
	span.mu.Lock()
	s.Equal(codes.Error, span.status)
	s.Len(span.errs, 1)
	span.mu.Unlock()

	mounted, err := s.service.Resume(ctx)
	s.Require().NoError(err)
	s.Zero(mounted)
	resume := rec.last("waitingroom.Resume")
	s.Require().NotNil(resume)
	resume.mu.Lock()
	s.True(resume.ended)
	s.Equal(codes.Unset, resume.status)
	resume.mu.Unlock()
}
