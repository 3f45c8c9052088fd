package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlog/callscribe-api/internal/config"
	"github.com/voxlog/callscribe-api/internal/mocks"
	"github.com/voxlog/callscribe-api/internal/service"
	"github.com/voxlog/callscribe-api/internal/service/auth"
	"github.com/voxlog/callscribe-api/internal/transcription"
)

func testAppLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildTranscriber(t *testing.T) {
	t.Parallel()

	calls := mocks.NewMockCallStore()
	logger := testAppLogger()

	t.Run("mock mode", func(t *testing.T) {
		transcriber, err := buildTranscriber(config.TranscriptionConfig{
			Mode: "mock",
			Mock: config.MockTranscriberConfig{
				MinDurationMs: 1,
				MaxDurationMs: 2,
			},
		}, calls, logger)
		require.NoError(t, err)
		assert.IsType(t, &transcription.MockTranscriber{}, transcriber)
	})

	t.Run("static mode", func(t *testing.T) {
		transcriber, err := buildTranscriber(config.TranscriptionConfig{Mode: "static"}, calls, logger)
		require.NoError(t, err)
		assert.IsType(t, &transcription.StaticTranscriber{}, transcriber)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := buildTranscriber(config.TranscriptionConfig{Mode: "cloud"}, calls, logger)
		assert.Error(t, err)
	})
}

// newTestApplication wires an application over in-memory stores, without a
// database or running worker pool, for router-level tests.
func newTestApplication(t *testing.T) *application {
	t.Helper()

	logger := testAppLogger()
	callStore := mocks.NewMockCallStore()
	jobStore := transcription.NewMemoryJobStore()
	jobQueue := transcription.NewJobQueue(jobStore, transcription.DefaultQueueConfig(), logger)

	callService, err := service.NewCallService(callStore, jobQueue, time.Millisecond, logger)
	require.NoError(t, err)

	return &application{
		config:           &config.Config{Server: config.ServerConfig{Port: 8080, LogLevel: "error"}},
		logger:           logger,
		userStore:        mocks.NewMockUserStore(),
		callStore:        callStore,
		jobStore:         jobStore,
		jwtService:       auth.NewMockJWTService(),
		passwordVerifier: auth.NewBcryptVerifier(),
		callService:      callService,
		jobQueue:         jobQueue,
	}
}

func TestRouterHealthEndpoint(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "OK", recorder.Body.String())
}

func TestRouterProtectedRoutesRequireAuth(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/calls"},
		{http.MethodPost, "/api/calls"},
		{http.MethodGet, "/api/analytics/calls-summary"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code, "%s %s", p.method, p.path)
	}
}

func TestRouterPublicAuthRoutes(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	router := app.setupRouter()

	// Malformed bodies still reach the handlers, proving the routes are
	// registered without the auth middleware.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
