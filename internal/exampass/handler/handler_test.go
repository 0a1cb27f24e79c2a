package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
	id "github.com/Ziel-Global/community-healers-sub001/pkg/domain"
)

func newRouter(t *testing.T) (http.Handler, *exampass.Issuer) {
	t.Helper()
	issuer, err := exampass.NewIssuer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	r := chi.NewRouter()
	New(issuer, slog.New(slog.DiscardHandler)).Register(r)
	return r, issuer
}

func post(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/exam-passes/verify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestVerifyValidPass(t *testing.T) {
	router, issuer := newRouter(t)
	grant := exampass.Grant{
		SessionID:   id.SessionID(uuid.New()),
		CandidateID: id.CandidateID(uuid.New()),
		ExamID:      id.ExamID(uuid.New()),
		Trigger:     countdown.TriggerManual,
	}
	pass, err := issuer.Issue(grant)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"token": pass.Token})
	rec := post(router, string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp verifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, pass.ID, resp.PassID)
	assert.Equal(t, grant.SessionID.String(), resp.SessionID)
	assert.Equal(t, "manual", resp.Trigger)
	assert.WithinDuration(t, pass.ExpiresAt, resp.ExpiresAt, time.Second)
}

func TestVerifyRejections(t *testing.T) {
	router, _ := newRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed body", "{", http.StatusBadRequest, "bad_request"},
		{"missing token", `{"token":"  "}`, http.StatusBadRequest, "validation_error"},
		{"forged token", `{"token":"a.b.c"}`, http.StatusUnauthorized, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(router, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var resp map[string]string
			require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&resp))
			assert.Equal(t, tt.code, resp["error"])
		})
	}
}
