package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tsuji/bunkei/internal/errors"
	"github.com/tsuji/bunkei/internal/logger"
	"github.com/tsuji/bunkei/internal/models"
)

type registerDrillsRequest struct {
	Items []models.DrillItem `json:"items"`
}

type drillMetaEntry struct {
	ID           string `json:"id"`
	PatternGroup string `json:"pattern_group"`
	IsCanonical  *bool  `json:"is_canonical"`
}

type loadDrillMetaRequest struct {
	Metadata []drillMetaEntry `json:"metadata"`
}

type reviewRequest struct {
	CardID    string `json:"card_id"`
	Grade     int    `json:"grade"`
	ErrorType string `json:"error_type,omitempty"`
}

type reviewResponse struct {
	Card            models.Card `json:"card"`
	IntervalMinutes int64       `json:"interval_minutes"`
	NextDue         time.Time   `json:"next_due"`
}

func (s *Server) handleRegisterDrills(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req registerDrillsRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if len(req.Items) == 0 {
		handleError(w, r, errors.NewValidationError("items", "cannot be empty"))
		return
	}

	created, err := s.Drills.InitializeCards(r.Context(), req.Items)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info("registered drills: received=%d created=%d", len(req.Items), created)
	writeJSON(w, r, http.StatusOK, map[string]any{"created": created})
}

func (s *Server) handleLoadDrillMeta(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req loadDrillMetaRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if len(req.Metadata) == 0 {
		handleError(w, r, errors.NewValidationError("metadata", "cannot be empty"))
		return
	}

	metas := make([]models.DrillMeta, 0, len(req.Metadata))
	for _, m := range req.Metadata {
		meta := models.DrillMeta{
			ID:           m.ID,
			PatternGroup: m.PatternGroup,
			// A drill with no explicit flag is the canonical member of
			// its group.
			IsCanonical: true,
		}
		if m.IsCanonical != nil {
			meta.IsCanonical = *m.IsCanonical
		}
		metas = append(metas, meta)
	}

	loaded, err := s.Drills.LoadDrillMeta(r.Context(), metas)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info("loaded drill metadata: received=%d loaded=%d", len(metas), loaded)
	writeJSON(w, r, http.StatusOK, map[string]any{"loaded": loaded})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	var errInfo *models.ErrorInfo
	if req.ErrorType != "" {
		errInfo = &models.ErrorInfo{Type: req.ErrorType}
	}

	res, err := s.Drills.ProcessReview(r.Context(), req.CardID, models.Grade(req.Grade), errInfo)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Debug("review processed: card_id=%s grade=%d next_due=%s", req.CardID, req.Grade, res.NextDue.Format(time.RFC3339))
	writeJSON(w, r, http.StatusOK, reviewResponse{
		Card:            res.Card,
		IntervalMinutes: int64(res.Interval / time.Minute),
		NextDue:         res.NextDue,
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	max := queryInt(r, "max", 0)

	cards, err := s.Drills.BuildQueue(r.Context(), max)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"cards": cards,
		"count": len(cards),
	})
}

func (s *Server) handleNextCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.Drills.NextCard(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if card == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.Drills.DueCards(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"cards": cards,
		"count": len(cards),
	})
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	card, err := s.Drills.GetCard(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleResetCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	card, err := s.Drills.ResetCard(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info("card reset: id=%s", id)
	writeJSON(w, r, http.StatusOK, card)
}

func (s *Server) handleResetAllCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	count, err := s.Drills.ResetAllCards(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Info("all cards reset: count=%d", count)
	writeJSON(w, r, http.StatusOK, map[string]any{"reset": count})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Drills.Stats(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, stats)
}
