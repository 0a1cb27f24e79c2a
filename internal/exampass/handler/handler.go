package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
	"github.com/Ziel-Global/community-healers-sub001/internal/platform/middleware"
	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/httputil"
	"github.com/Ziel-Global/community-healers-sub001/pkg/requestcontext"
)

// Verifier checks exam passes.
type Verifier interface {
	Verify(token string) (*exampass.Claims, error)
}

type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func New(verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	PassID      string    `json:"pass_id"`
	SessionID   string    `json:"session_id"`
	CandidateID string    `json:"candidate_id"`
	ExamID      string    `json:"exam_id"`
	Trigger     string    `json:"trigger"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Register mounts POST /exam-passes/verify, used by the exam-taking view.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(middleware.Recovery(h.logger))
		g.Use(middleware.RequestID)
		g.Use(middleware.Logger(h.logger))
		g.Use(middleware.Timeout(10 * time.Second))
		g.Use(middleware.ContentTypeJSON)
		g.Post("/exam-passes/verify", h.handleVerify)
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid verify request", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token is required"))
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.WarnContext(ctx, "exam pass rejected", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	resp := verifyResponse{
		PassID:      claims.ID,
		SessionID:   claims.SessionID,
		CandidateID: claims.CandidateID,
		ExamID:      claims.ExamID,
		Trigger:     claims.Trigger,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
