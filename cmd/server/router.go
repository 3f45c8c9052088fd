package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxlog/callscribe-api/internal/api"
	apiMiddleware "github.com/voxlog/callscribe-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(
		app.userStore,
		app.jwtService,
		app.passwordVerifier,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	callHandler := api.NewCallHandler(app.callService, app.logger)
	analyticsHandler := api.NewAnalyticsHandler(app.callService, app.logger)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/calls", func(r chi.Router) {
				r.Post("/", callHandler.CreateCall)
				r.Get("/", callHandler.ListCalls)
				r.Get("/{id}", callHandler.GetCall)
				r.Put("/{id}", callHandler.UpdateCall)
				r.Delete("/{id}", callHandler.DeleteCall)
				r.Get("/{id}/transcription", callHandler.GetTranscription)
				r.Post("/{id}/retry-transcription", callHandler.RetryTranscription)
			})

			r.Get("/analytics/calls-summary", analyticsHandler.CallsSummary)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
