package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlog/callscribe-api/internal/api/shared"
	"github.com/voxlog/callscribe-api/internal/domain"
	"github.com/voxlog/callscribe-api/internal/mocks"
	"github.com/voxlog/callscribe-api/internal/service"
)

// stubJobSubmitter records submissions and optionally fails them.
type stubJobSubmitter struct {
	mu          sync.Mutex
	submissions []uuid.UUID
	err         error
}

func (s *stubJobSubmitter) Enqueue(_ context.Context, callID uuid.UUID, _ time.Duration) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return uuid.Nil, s.err
	}
	s.submissions = append(s.submissions, callID)
	return uuid.New(), nil
}

func (s *stubJobSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}

// callAPIHarness wires a real call service over in-memory stores behind a
// chi router, with a test middleware standing in for authentication.
type callAPIHarness struct {
	router    chi.Router
	callStore *mocks.MockCallStore
	submitter *stubJobSubmitter
	userID    uuid.UUID
}

func newCallAPIHarness(t *testing.T) *callAPIHarness {
	t.Helper()

	callStore := mocks.NewMockCallStore()
	submitter := &stubJobSubmitter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	callService, err := service.NewCallService(callStore, submitter, 10*time.Millisecond, logger)
	require.NoError(t, err)

	h := &callAPIHarness{
		callStore: callStore,
		submitter: submitter,
		userID:    uuid.New(),
	}

	callHandler := NewCallHandler(callService, logger)
	analyticsHandler := NewAnalyticsHandler(callService, logger)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), shared.UserIDContextKey, h.userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Route("/api/calls", func(r chi.Router) {
		r.Post("/", callHandler.CreateCall)
		r.Get("/", callHandler.ListCalls)
		r.Get("/{id}", callHandler.GetCall)
		r.Put("/{id}", callHandler.UpdateCall)
		r.Delete("/{id}", callHandler.DeleteCall)
		r.Get("/{id}/transcription", callHandler.GetTranscription)
		r.Post("/{id}/retry-transcription", callHandler.RetryTranscription)
	})
	router.Get("/api/analytics/calls-summary", analyticsHandler.CallsSummary)

	h.router = router
	return h
}

func (h *callAPIHarness) do(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)
	return recorder
}

// seedCall creates a call owned by the harness user directly in the store.
func (h *callAPIHarness) seedCall(t *testing.T, title string) *domain.Call {
	t.Helper()

	call, err := domain.NewCall(h.userID, title, []domain.Participant{
		{Name: "Alice", Email: "alice@example.com", Role: domain.ParticipantRoleHost},
		{Name: "Bob", Email: "bob@example.com", Role: domain.ParticipantRoleParticipant},
	})
	require.NoError(t, err)
	require.NoError(t, h.callStore.Create(context.Background(), call))
	return call
}

func validCreatePayload() map[string]interface{} {
	return map[string]interface{}{
		"title": "Weekly sync",
		"participants": []map[string]string{
			{"name": "Alice", "email": "alice@example.com", "role": "host"},
			{"name": "Bob", "email": "bob@example.com", "role": "participant"},
		},
		"notes": "Agenda: roadmap",
	}
}

func TestCreateCallEndpoint(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)

	recorder := h.do(t, http.MethodPost, "/api/calls", validCreatePayload())
	require.Equal(t, http.StatusCreated, recorder.Code)

	var call domain.Call
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&call))
	assert.Equal(t, "Weekly sync", call.Title)
	assert.Equal(t, h.userID, call.UserID)
	assert.Equal(t, domain.CallStatusScheduled, call.Status)
	assert.Equal(t, domain.TranscriptionStatusPending, call.TranscriptionStatus)
	assert.Len(t, call.Participants, 2)

	assert.Equal(t, 1, h.submitter.count())
}

func TestCreateCallEndpointValidation(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)

	tests := []struct {
		name    string
		mutate  func(payload map[string]interface{})
		wantErr string
	}{
		{
			name:    "missing title",
			mutate:  func(p map[string]interface{}) { delete(p, "title") },
			wantErr: "Invalid Title",
		},
		{
			name:    "missing participants",
			mutate:  func(p map[string]interface{}) { delete(p, "participants") },
			wantErr: "Invalid Participants",
		},
		{
			name: "participant with bad role",
			mutate: func(p map[string]interface{}) {
				p["participants"] = []map[string]string{
					{"name": "Alice", "email": "alice@example.com", "role": "moderator"},
				}
			},
			wantErr: "Invalid Role",
		},
		{
			name: "bad audio URL",
			mutate: func(p map[string]interface{}) {
				p["audio_file_url"] = "not a url"
			},
			wantErr: "Invalid AudioFileURL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validCreatePayload()
			tt.mutate(payload)

			recorder := h.do(t, http.MethodPost, "/api/calls", payload)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Contains(t, recorder.Body.String(), tt.wantErr)
		})
	}

	assert.Equal(t, 0, h.submitter.count())
}

func TestCreateCallEndpointSurvivesSubmitFailure(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	h.submitter.err = context.DeadlineExceeded

	recorder := h.do(t, http.MethodPost, "/api/calls", validCreatePayload())
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var call domain.Call
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&call))
	assert.Equal(t, domain.TranscriptionStatusPending, call.TranscriptionStatus)
}

func TestListCallsEndpoint(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	h.seedCall(t, "Standup")
	h.seedCall(t, "Retro")
	h.seedCall(t, "Planning")

	recorder := h.do(t, http.MethodGet, "/api/calls?page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp CallListResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 2, resp.Pages)
	assert.Len(t, resp.Data, 2)

	recorder = h.do(t, http.MethodGet, "/api/calls?search=retro", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Retro", resp.Data[0].Title)
}

func TestListCallsEndpointInvalidQuery(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)

	for _, query := range []string{"page=0", "page=abc", "limit=-1", "status=bogus", "sort=password"} {
		recorder := h.do(t, http.MethodGet, "/api/calls?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "query %q", query)
	}
}

func TestGetCallEndpoint(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	call := h.seedCall(t, "Standup")

	recorder := h.do(t, http.MethodGet, "/api/calls/"+call.ID.String(), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var got domain.Call
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&got))
	assert.Equal(t, call.ID, got.ID)
}

func TestGetCallEndpointErrors(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)

	// Unknown ID
	recorder := h.do(t, http.MethodGet, "/api/calls/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Malformed ID
	recorder = h.do(t, http.MethodGet, "/api/calls/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Someone else's call
	other, err := domain.NewCall(uuid.New(), "Private", []domain.Participant{
		{Name: "Eve", Email: "eve@example.com", Role: domain.ParticipantRoleHost},
	})
	require.NoError(t, err)
	require.NoError(t, h.callStore.Create(context.Background(), other))

	recorder = h.do(t, http.MethodGet, "/api/calls/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestUpdateCallEndpoint(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	call := h.seedCall(t, "Standup")

	started := time.Now().UTC().Add(-30 * time.Minute)
	ended := time.Now().UTC()
	payload := map[string]interface{}{
		"title":      "Standup (moved)",
		"status":     "completed",
		"started_at": started,
		"ended_at":   ended,
	}

	recorder := h.do(t, http.MethodPut, "/api/calls/"+call.ID.String(), payload)
	require.Equal(t, http.StatusOK, recorder.Code)

	var got domain.Call
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&got))
	assert.Equal(t, "Standup (moved)", got.Title)
	assert.Equal(t, domain.CallStatusCompleted, got.Status)
	assert.InDelta(t, 1800, got.DurationSeconds, 1)
}

func TestUpdateCallEndpointValidation(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	call := h.seedCall(t, "Standup")

	recorder := h.do(t, http.MethodPut, "/api/calls/"+call.ID.String(), map[string]interface{}{
		"status": "paused",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDeleteCallEndpoint(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	call := h.seedCall(t, "Standup")

	recorder := h.do(t, http.MethodDelete, "/api/calls/"+call.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = h.do(t, http.MethodGet, "/api/calls/"+call.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetTranscriptionEndpoint(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	call := h.seedCall(t, "Standup")
	require.NoError(t, h.callStore.SetTranscriptionCompleted(context.Background(), call.ID, "hello world"))

	recorder := h.do(t, http.MethodGet, "/api/calls/"+call.ID.String()+"/transcription", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "completed", resp["transcription_status"])
	assert.Equal(t, "hello world", resp["transcription_text"])
}

func TestRetryTranscriptionEndpoint(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	call := h.seedCall(t, "Standup")
	require.NoError(t, h.callStore.SetTranscriptionFailed(context.Background(), call.ID, "simulated failure"))

	recorder := h.do(t, http.MethodPost, "/api/calls/"+call.ID.String()+"/retry-transcription", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "pending", resp["transcription_status"])
	assert.Equal(t, float64(1), resp["transcription_retry_count"])
	assert.Empty(t, resp["transcription_error"])

	assert.Equal(t, 1, h.submitter.count())
}

func TestRetryTranscriptionEndpointConflict(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)
	call := h.seedCall(t, "Standup")
	require.NoError(t, h.callStore.SetTranscriptionProcessing(context.Background(), call.ID))

	recorder := h.do(t, http.MethodPost, "/api/calls/"+call.ID.String()+"/retry-transcription", nil)
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, 0, h.submitter.count())
}

func TestRetryTranscriptionEndpointOwnership(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)

	recorder := h.do(t, http.MethodPost, "/api/calls/"+uuid.NewString()+"/retry-transcription", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	other, err := domain.NewCall(uuid.New(), "Private", []domain.Participant{
		{Name: "Eve", Email: "eve@example.com", Role: domain.ParticipantRoleHost},
	})
	require.NoError(t, err)
	require.NoError(t, h.callStore.Create(context.Background(), other))

	recorder = h.do(t, http.MethodPost, "/api/calls/"+other.ID.String()+"/retry-transcription", nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, 0, h.submitter.count())
}

func TestCallsSummaryEndpoint(t *testing.T) {
	t.Parallel()

	h := newCallAPIHarness(t)

	completed := h.seedCall(t, "Completed call")
	require.NoError(t, h.callStore.SetTranscriptionCompleted(context.Background(), completed.ID, "text"))

	failed := h.seedCall(t, "Failed call")
	require.NoError(t, h.callStore.SetTranscriptionFailed(context.Background(), failed.ID, "boom"))

	h.seedCall(t, "Pending call")

	recorder := h.do(t, http.MethodGet, "/api/analytics/calls-summary", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, float64(3), resp["totalCalls"])
	assert.Equal(t, float64(1), resp["completedTranscriptions"])
	assert.Equal(t, float64(1), resp["failedTranscriptions"])
	assert.Equal(t, float64(1), resp["pendingTranscriptions"])
}

func TestCallEndpointsRequireUserID(t *testing.T) {
	t.Parallel()

	// Bypass the harness router so the context carries no user ID.
	h := newCallAPIHarness(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	callService, err := service.NewCallService(h.callStore, h.submitter, time.Millisecond, logger)
	require.NoError(t, err)
	handler := NewCallHandler(callService, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/calls", nil)
	recorder := httptest.NewRecorder()
	handler.ListCalls(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
