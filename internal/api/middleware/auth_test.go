package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlog/callscribe-api/internal/service/auth"
)

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	jwtService := &auth.MockJWTService{
		Claims: &auth.Claims{
			UserID:    userID,
			Subject:   userID.String(),
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	authMiddleware := NewAuthMiddleware(jwtService)

	var gotUserID uuid.UUID
	var handlerCalled bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		gotUserID, _ = GetUserID(r)
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name            string
		header          string
		validationError error
		wantStatus      int
		wantBody        string
	}{
		{
			name:       "valid token",
			header:     "Bearer some-valid-token",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authorization header required",
		},
		{
			name:       "wrong scheme",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid authorization format",
		},
		{
			name:       "token without scheme",
			header:     "some-valid-token",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid authorization format",
		},
		{
			name:            "expired token",
			header:          "Bearer expired-token",
			validationError: auth.ErrExpiredToken,
			wantStatus:      http.StatusUnauthorized,
			wantBody:        "Token expired",
		},
		{
			name:            "invalid token",
			header:          "Bearer garbage-token",
			validationError: auth.ErrInvalidToken,
			wantStatus:      http.StatusUnauthorized,
			wantBody:        "Invalid token",
		},
		{
			name:            "unexpected validation failure",
			header:          "Bearer some-token",
			validationError: assert.AnError,
			wantStatus:      http.StatusInternalServerError,
			wantBody:        "Authentication error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled = false
			gotUserID = uuid.Nil
			jwtService.ValidationError = tt.validationError

			req := httptest.NewRequest(http.MethodGet, "/api/calls", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			authMiddleware.Authenticate(next).ServeHTTP(recorder, req)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			if tt.wantBody != "" {
				assert.Contains(t, recorder.Body.String(), tt.wantBody)
			}

			if tt.wantStatus == http.StatusOK {
				require.True(t, handlerCalled)
				assert.Equal(t, userID, gotUserID)
			} else {
				assert.False(t, handlerCalled)
			}
		})
	}
}
