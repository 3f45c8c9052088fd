package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/voxlog/callscribe-api/internal/api/shared"
	"github.com/voxlog/callscribe-api/internal/domain"
	"github.com/voxlog/callscribe-api/internal/platform/logger"
	"github.com/voxlog/callscribe-api/internal/service"
	"github.com/voxlog/callscribe-api/internal/store"
)

// Listing bounds
const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// CallHandler handles call-related HTTP requests.
type CallHandler struct {
	callService service.CallService
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewCallHandler creates a new CallHandler.
func NewCallHandler(callService service.CallService, logger *slog.Logger) *CallHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CallHandler")
	}

	return &CallHandler{
		callService: callService,
		validator:   validator.New(),
		logger:      logger.With(slog.String("component", "call_handler")),
	}
}

// CreateCall handles POST /calls requests. The transcription job is submitted
// as part of creation; a submission failure still yields a 201 and the call
// can be retried manually.
func (h *CallHandler) CreateCall(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "User ID not found or invalid")
		return
	}

	var req CreateCallRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	call, err := h.callService.CreateCall(r.Context(), userID, service.CreateCallInput{
		Title:        req.Title,
		Participants: toParticipants(req.Participants),
		Notes:        req.Notes,
		AudioFileURL: req.AudioFileURL,
		ScheduledAt:  req.ScheduledAt,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("call created",
		slog.String("call_id", call.ID.String()),
		slog.String("user_id", userID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, call)
}

// ListCalls handles GET /calls requests. Query parameters: page (1-based),
// limit, status, search, and sort (field name, "-" prefix for descending).
func (h *CallHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "User ID not found or invalid")
		return
	}

	input, err := parseListCallsQuery(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	calls, total, err := h.callService.ListCalls(r.Context(), userID, input)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list calls")
		return
	}

	pages := (total + input.Limit - 1) / input.Limit
	if pages == 0 {
		pages = 1
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CallListResponse{
		Count: len(calls),
		Total: total,
		Page:  input.Page,
		Pages: pages,
		Data:  calls,
	})
}

// GetCall handles GET /calls/{id} requests.
func (h *CallHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, callID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	call, err := h.callService.GetCall(r.Context(), userID, callID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, call)
}

// UpdateCall handles PUT /calls/{id} requests. Only the fields present in
// the payload change; the call's duration is re-derived from the start and
// end timestamps.
func (h *CallHandler) UpdateCall(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, callID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateCallRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	input := service.UpdateCallInput{
		Title:        req.Title,
		Notes:        req.Notes,
		AudioFileURL: req.AudioFileURL,
		ScheduledAt:  req.ScheduledAt,
		StartedAt:    req.StartedAt,
		EndedAt:      req.EndedAt,
	}
	if req.Participants != nil {
		participants := toParticipants(*req.Participants)
		input.Participants = &participants
	}
	if req.Status != nil {
		status := domain.CallStatus(*req.Status)
		input.Status = &status
	}

	call, err := h.callService.UpdateCall(r.Context(), userID, callID, input)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("call updated",
		slog.String("call_id", callID.String()),
		slog.String("user_id", userID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, call)
}

// DeleteCall handles DELETE /calls/{id} requests.
func (h *CallHandler) DeleteCall(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, callID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.callService.DeleteCall(r.Context(), userID, callID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("call deleted",
		slog.String("call_id", callID.String()),
		slog.String("user_id", userID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// GetTranscription handles GET /calls/{id}/transcription requests, returning
// the transcription status projection for polling.
func (h *CallHandler) GetTranscription(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, callID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	projection, err := h.callService.GetTranscription(r.Context(), userID, callID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, projection)
}

// RetryTranscription handles POST /calls/{id}/retry-transcription requests.
// Returns 409 while a transcription attempt is running.
func (h *CallHandler) RetryTranscription(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, callID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	projection, err := h.callService.RetryTranscription(r.Context(), userID, callID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("transcription retry submitted",
		slog.String("call_id", callID.String()),
		slog.String("user_id", userID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, projection)
}

// parseListCallsQuery builds the listing input from query parameters,
// applying defaults and bounds.
func parseListCallsQuery(r *http.Request) (service.ListCallsInput, error) {
	query := r.URL.Query()

	input := service.ListCallsInput{
		Page:       1,
		Limit:      defaultPageLimit,
		SortBy:     store.CallSortCreatedAt,
		Descending: true,
		Search:     query.Get("search"),
	}

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return input, errInvalidQueryParam("page")
		}
		input.Page = page
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return input, errInvalidQueryParam("limit")
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		input.Limit = limit
	}

	if raw := query.Get("status"); raw != "" {
		status := domain.CallStatus(raw)
		switch status {
		case domain.CallStatusScheduled, domain.CallStatusInProgress,
			domain.CallStatusCompleted, domain.CallStatusCancelled:
			input.Status = status
		default:
			return input, errInvalidQueryParam("status")
		}
	}

	if raw := query.Get("sort"); raw != "" {
		field := raw
		input.Descending = strings.HasPrefix(raw, "-")
		if input.Descending {
			field = strings.TrimPrefix(raw, "-")
		}
		switch store.CallSortField(field) {
		case store.CallSortCreatedAt, store.CallSortScheduledAt, store.CallSortTitle:
			input.SortBy = store.CallSortField(field)
		default:
			return input, errInvalidQueryParam("sort")
		}
	}

	return input, nil
}

type invalidQueryParamError struct {
	param string
}

func (e invalidQueryParamError) Error() string {
	return "Invalid query parameter: " + e.param
}

func errInvalidQueryParam(param string) error {
	return invalidQueryParamError{param: param}
}
