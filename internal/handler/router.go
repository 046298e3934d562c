// Package handler wires the HTTP surface: the inbound event endpoint the
// transport posts to, the admin authorization endpoint, and the health
// check.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ellielabs/ellie/backend/internal/service/conversation"
	"github.com/ellielabs/ellie/backend/internal/store"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(engine *conversation.Engine, st store.Store, adminToken string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	events := &EventsHandler{engine: engine}
	admin := &AdminHandler{store: st, token: adminToken, log: logger}

	r.Route("/api", func(api chi.Router) {
		api.Post("/events", events.handleEvent)
		api.Post("/admin/authorize", admin.handleAuthorize)
		api.Get("/admin/journals/{userID}", admin.handleListJournal)
	})
	r.Get("/healthz", handleHealth(engine))

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
