package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/metrics"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/middleware"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/service"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/view"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/httputil"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/middleware/admin"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/middleware/metadata"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/middleware/requesttime"
)

const (
	basePath       = "/waiting-rooms"
	requestTimeout = 30 * time.Second
)

// Service defines the waiting-room operations exposed over HTTP.
type Service interface {
	Open(ctx context.Context, cmd models.OpenCommand) (*service.SessionView, error)
	Get(ctx context.Context, sessionID id.SessionID) (*service.SessionView, error)
	StartExam(ctx context.Context, sessionID id.SessionID) (*service.SessionView, error)
	Close(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Subscribe(ctx context.Context, sessionID id.SessionID) (<-chan countdown.Snapshot, error)
	Trail(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error)
	Location() *time.Location
}

// Handler serves the waiting-room endpoints and page.
type Handler struct {
	service    Service
	logger     *slog.Logger
	metrics    *metrics.Metrics
	labels     view.Labels
	adminToken string
}

type Option func(*Handler)

// WithLabels overrides the exam metadata shown next to the countdown.
func WithLabels(labels view.Labels) Option {
	return func(h *Handler) {
		if labels.Center != "" {
			h.labels.Center = labels.Center
		}
		if labels.Time != "" {
			h.labels.Time = labels.Time
		}
	}
}

// WithAdminToken enables the audit trail endpoint behind X-Admin-Token.
func WithAdminToken(token string) Option {
	return func(h *Handler) {
		h.adminToken = token
	}
}

// New creates a waiting-room Handler. metrics may be nil.
func New(svc Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		service: svc,
		logger:  logger,
		metrics: metrics,
		labels:  view.DefaultLabels(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the waiting-room routes. The live stream stays outside the
// request timeout.
func (h *Handler) Register(r chi.Router) {
	r.Route(basePath, func(wr chi.Router) {
		wr.Use(middleware.Recovery(h.logger))
		wr.Use(middleware.RequestID)
		wr.Use(metadata.ClientMetadata)
		wr.Use(requesttime.Middleware)
		wr.Use(middleware.Logger(h.logger))
		wr.Use(middleware.LatencyMiddleware(h.metrics))

		wr.Get("/{id}/live", h.handleLive)

		wr.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(requestTimeout))
			g.With(middleware.ContentTypeJSON).Post("/", h.handleOpen)
			g.Get("/{id}", h.handleGet)
			g.Post("/{id}/start", h.handleStart)
			g.Delete("/{id}", h.handleClose)
			g.With(admin.RequireAdminToken(h.adminToken, h.logger)).Get("/{id}/audit", h.handleTrail)
		})
	})
}

type sessionResponse struct {
	Session  *models.Session    `json:"session"`
	Snapshot countdown.Snapshot `json:"snapshot"`
	Pass     *exampass.Pass     `json:"pass,omitempty"`
}

func toResponse(v *service.SessionView) sessionResponse {
	return sessionResponse{Session: v.Session, Snapshot: v.Snapshot, Pass: v.Pass}
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid open waiting room request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.Normalize()
	cmd, err := req.Validate(h.service.Location())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.Open(ctx, cmd)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to open waiting room", err)
		return
	}
	w.Header().Set("Location", basePath+"/"+v.Session.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, toResponse(v))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	v, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "failed to load waiting room", err)
		return
	}
	if wantsHTML(r) {
		templ.Handler(view.WaitingRoom(h.page(v))).ServeHTTP(w, r)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	v, err := h.service.StartExam(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "failed to start exam", err)
		return
	}
	if isFormPost(r) {
		http.Redirect(w, r, basePath+"/"+sessionID.String(), http.StatusSeeOther)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(v))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.service.Close(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "failed to close waiting room", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	events, err := h.service.Trail(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(r.Context(), w, "failed to load audit trail", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) page(v *service.SessionView) view.Page {
	sid := v.Session.ID.String()
	return view.Page{
		SessionID: sid,
		Snapshot:  v.Snapshot,
		Admitted:  v.Session.IsAdmitted(),
		Pass:      v.Pass,
		Labels:    h.labels,
		StartPath: basePath + "/" + sid + "/start",
		LivePath:  basePath + "/" + sid + "/live",
	}
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}

// writeServiceError logs internal failures at error level and client errors at
// warn level, then writes the envelope.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{"request_id", middleware.GetRequestID(ctx), "error", err.Error()}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func isFormPost(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data")
}
