package api

import (
	"net/http"
	"time"

	"github.com/tsuji/bunkei/internal/errors"
	"github.com/tsuji/bunkei/internal/journal"
	"github.com/tsuji/bunkei/internal/models"
)

// historyFilter builds a journal filter from query parameters. An invalid
// grade or since value is rejected rather than silently ignored.
func historyFilter(r *http.Request) (journal.Filter, error) {
	q := r.URL.Query()
	f := journal.Filter{
		CardID:  q.Get("card_id"),
		Pattern: q.Get("pattern"),
		Unit:    q.Get("unit"),
		Limit:   queryInt(r, "limit", 0),
	}

	if v := q.Get("grade"); v != "" {
		g := models.Grade(queryInt(r, "grade", 0))
		if !g.IsValid() {
			return f, errors.NewValidationError("grade", "must be between 1 (Again) and 4 (Easy)")
		}
		f.Grade = g
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.NewValidationError("since", "must be an RFC 3339 timestamp")
		}
		f.Since = since
	}

	return f, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	f, err := historyFilter(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	entries, err := s.Drills.History(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	f, err := historyFilter(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	summary, err := s.Drills.HistorySummary(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, summary)
}
