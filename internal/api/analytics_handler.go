package api

import (
	"log/slog"
	"net/http"

	"github.com/voxlog/callscribe-api/internal/api/shared"
	"github.com/voxlog/callscribe-api/internal/domain"
	"github.com/voxlog/callscribe-api/internal/platform/logger"
	"github.com/voxlog/callscribe-api/internal/service"
)

// AnalyticsHandler serves aggregate views over the authenticated user's calls.
type AnalyticsHandler struct {
	callService service.CallService
	logger      *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(callService service.CallService, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AnalyticsHandler")
	}

	return &AnalyticsHandler{
		callService: callService,
		logger:      logger.With(slog.String("component", "analytics_handler")),
	}
}

// CallsSummary handles GET /analytics/calls-summary requests, returning
// call totals, per-transcription-status counts and the success rate.
func (h *AnalyticsHandler) CallsSummary(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "User ID not found or invalid")
		return
	}

	summary, err := h.callService.Summary(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to build calls summary")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}
