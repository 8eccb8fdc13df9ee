package api

import (
	"net/http"
	"time"

	// This blank import is required by swaggo to find the API definitions.
	_ "nova-ai/backend/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter creates and configures a chi router with all application routes.
func NewRouter(chatHandler *ChatHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Serves the auto-generated Swagger UI.
	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	// Health check for container orchestration probes.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Standard JSON routes get a request timeout so client connections
		// cannot hang indefinitely.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/sessions", chatHandler.HandleCreateSession)
			r.Get("/sessions", chatHandler.HandleListSessions)
			r.Get("/sessions/{sessionID}", chatHandler.HandleGetSession)
			r.Post("/sessions/{sessionID}/select", chatHandler.HandleSelectSession)

			r.Get("/models", chatHandler.HandleListModels)
			r.Put("/model", chatHandler.HandleSetModel)

			r.Post("/transcribe", chatHandler.HandleTranscribe)
		})

		// Streaming endpoints hold a connection open for the lifetime of a
		// model response and must not be subject to the timeout middleware.
		r.Group(func(r chi.Router) {
			r.Post("/messages", chatHandler.HandleSendMessage)
		})
	})

	return r
}
