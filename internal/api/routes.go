package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(timeoutMiddleware(15 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/drills", s.handleRegisterDrills)
		r.Post("/drills/meta", s.handleLoadDrillMeta)
		r.Post("/reviews", s.handleReview)
		r.Get("/queue", s.handleQueue)
		r.Post("/queue/next", s.handleNextCard)
		r.Get("/cards/due", s.handleDueCards)
		r.Get("/cards/{id}", s.handleGetCard)
		r.Post("/cards/{id}/reset", s.handleResetCard)
		r.Post("/cards/reset", s.handleResetAllCards)
		r.Get("/stats", s.handleStats)
		r.Get("/history", s.handleHistory)
		r.Get("/history/summary", s.handleHistorySummary)
	})

	return r
}
