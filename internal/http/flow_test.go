package httpapi_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ziel-Global/community-healers-sub001/internal/countdown"
	"github.com/Ziel-Global/community-healers-sub001/internal/exampass"
	passhandler "github.com/Ziel-Global/community-healers-sub001/internal/exampass/handler"
	httpapi "github.com/Ziel-Global/community-healers-sub001/internal/http"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/handler"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/models"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/service"
	"github.com/Ziel-Global/community-healers-sub001/internal/waitingroom/store"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit/publisher"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/audit/store/memory"
	"github.com/Ziel-Global/community-healers-sub001/pkg/platform/middleware/admin"
	"github.com/Ziel-Global/community-healers-sub001/pkg/testutil"
)

const operatorToken = "flow-operator-token"

type sessionBody struct {
	Session  models.Session     `json:"session"`
	Snapshot countdown.Snapshot `json:"snapshot"`
	Pass     *exampass.Pass     `json:"pass"`
}

func newStack(t *testing.T, clock clockwork.Clock) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	issuer, err := exampass.NewIssuer([]byte("flow-test-signing-key-0123456789abcdef"))
	require.NoError(t, err)
	audits := publisher.NewPublisher(memory.NewInMemoryStore(), publisher.WithLogger(logger))
	t.Cleanup(audits.Close)

	svc, err := service.New(store.NewInMemory(),
		service.WithLogger(logger),
		service.WithClock(clock),
		service.WithLocation(time.UTC),
		service.WithAuditPublisher(audits),
		service.WithPassIssuer(issuer),
		service.WithAutoStartDelay(0),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	return httpapi.NewRouter(nil,
		handler.New(svc, logger, nil, handler.WithAdminToken(operatorToken)),
		passhandler.New(issuer, logger),
	)
}

func TestWaitingRoomFlow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 9, 59, 58, 0, time.UTC))
	router := newStack(t, clock)

	testutil.Given(t, "a candidate whose exam starts at 10:00 today", func(t *testing.T) {
		rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/waiting-rooms", models.OpenRequest{
			CandidateID: uuid.NewString(),
			ExamID:      uuid.NewString(),
			ExamDate:    "2026-06-01",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		opened := testutil.UnmarshalResponse[sessionBody](t, rec)
		roomPath := "/waiting-rooms/" + opened.Session.ID.String()

		testutil.Then(t, "the waiting room counts down to the normalized start", func(t *testing.T) {
			assert.Equal(t, countdown.StateCounting, opened.Snapshot.State)
			assert.True(t, time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC).Equal(opened.Snapshot.Target), "target %s", opened.Snapshot.Target)
			require.NotNil(t, opened.Snapshot.Remaining)
			assert.Equal(t, countdown.Remaining{Seconds: 2}, *opened.Snapshot.Remaining)
		})

		testutil.When(t, "the candidate presses start too early", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, roomPath+"/start", nil))

			testutil.Then(t, "the start is rejected", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rec, http.StatusConflict, "conflict")
			})
		})

		testutil.When(t, "the page is loaded in a browser", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewHTMLRequest(t, roomPath))

			testutil.Then(t, "it shows the countdown and the exam metadata", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code)
				assert.Contains(t, rec.Body.String(), "Designated Examination Center")
				assert.Contains(t, rec.Body.String(), "10:00 AM")
			})
		})

		var pass *exampass.Pass
		testutil.When(t, "the exam is ready and the candidate presses start", func(t *testing.T) {
			clock.Advance(3 * time.Second)
			rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, roomPath+"/start", nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			started := testutil.UnmarshalResponse[sessionBody](t, rec)
			pass = started.Pass

			testutil.Then(t, "the candidate is admitted with an exam pass", func(t *testing.T) {
				assert.Equal(t, models.StatusAdmitted, started.Session.Status)
				assert.Equal(t, countdown.TriggerManual, started.Session.Trigger)
				require.NotNil(t, pass)
				assert.NotEmpty(t, pass.Token)
			})
		})
		require.NotNil(t, pass)

		testutil.And(t, "the exam-taking view verifies the pass", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/exam-passes/verify", map[string]string{"token": pass.Token}))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			claims := testutil.UnmarshalResponse[map[string]any](t, rec)
			assert.Equal(t, opened.Session.ID.String(), (*claims)["session_id"])
			assert.Equal(t, "manual", (*claims)["trigger"])
		})

		testutil.When(t, "start is pressed again", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, roomPath+"/start", nil))

			testutil.Then(t, "the original admission is returned", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code)
				again := testutil.UnmarshalResponse[sessionBody](t, rec)
				require.NotNil(t, again.Pass)
				assert.Equal(t, pass.ID, again.Pass.ID)
			})
		})

		testutil.When(t, "an operator reads the audit trail", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodGet, roomPath+"/audit", nil)
			req.Header.Set(admin.HeaderAdminToken, operatorToken)
			rec := testutil.DoRequest(router, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			trail := testutil.UnmarshalResponse[map[string][]audit.Event](t, rec)

			testutil.Then(t, "it records the opening and exactly one admission", func(t *testing.T) {
				admissions := 0
				var actions []audit.Action
				for _, e := range (*trail)["events"] {
					actions = append(actions, e.Action)
					if e.Action == audit.ActionExamAdmitted {
						admissions++
					}
				}
				assert.Contains(t, actions, audit.ActionWaitingRoomOpened)
				assert.Equal(t, 1, admissions)
			})
		})

		testutil.When(t, "the waiting room is closed", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodDelete, roomPath, nil)
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "the session is closed", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				closed := testutil.UnmarshalResponse[map[string]models.Session](t, rec)
				assert.Equal(t, models.StatusClosed, (*closed)["session"].Status)
			})
		})
	})
}

func TestHealthEndpoints(t *testing.T) {
	router := newStack(t, clockwork.NewFakeClock())
	assert.Equal(t, http.StatusOK, testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/readyz", nil)).Code)
}
