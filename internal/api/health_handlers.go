package api

import (
	"net/http"

	"github.com/tsuji/bunkei/internal/errors"
	"github.com/tsuji/bunkei/internal/logger"
)

// handleHealth is the liveness probe; it answers 200 whenever the process
// is serving requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleReady is the readiness probe. It answers 503 when the review
// database is unreachable or the last snapshot write failed, so a fresh
// instance is not handed traffic it would lose reviews on.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := s.DB.PingContext(ctx); err != nil {
		log.Warn("readiness check failed: database: %v", err)
		handleError(w, r, errors.NewUnavailableError("database", err))
		return
	}

	if err := s.Persister.LastError(); err != nil {
		log.Warn("readiness check failed: snapshot store: %v", err)
		handleError(w, r, errors.NewUnavailableError("snapshot store", err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
