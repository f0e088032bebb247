package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsuji/bunkei/internal/api"
	"github.com/tsuji/bunkei/internal/journal"
	"github.com/tsuji/bunkei/internal/logger"
	"github.com/tsuji/bunkei/internal/models"
	"github.com/tsuji/bunkei/internal/persist"
	"github.com/tsuji/bunkei/internal/scheduler"
	"github.com/tsuji/bunkei/internal/services"
	"github.com/tsuji/bunkei/internal/storage"
	"github.com/tsuji/bunkei/internal/testutil"
)

func TestMain(m *testing.M) {
	logger.SetDefault(logger.New(logger.WithOutput(io.Discard), logger.WithLevel(logger.ERROR)))
	os.Exit(m.Run())
}

// newTestHandler wires a full server over in-memory collaborators.
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	sched, err := scheduler.New(scheduler.Config{
		Logger: logger.New(logger.WithOutput(io.Discard), logger.WithLevel(logger.ERROR)),
	})
	require.NoError(t, err)

	store := storage.NewMemory()
	persister := persist.New(store, "cards/v1")
	persister.Start(context.Background())
	t.Cleanup(persister.Stop)

	database := testutil.NewTestDB(t)
	jrnl := journal.New(database)

	srv := &api.Server{
		Drills:    services.NewDrillService(sched, persister, jrnl, store, "cards/v1"),
		DB:        database,
		Persister: persister,
	}
	return srv.Routes()
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), "body: %s", rr.Body.String())
}

func registerDrills(t *testing.T, h http.Handler) {
	t.Helper()
	body := `{"items":[
		{"id":"card-1","pos_pattern":"p1","commonality":0.9,"unit":"unit-1"},
		{"id":"card-2","pos_pattern":"p2","commonality":0.4,"unit":"unit-1"}
	]}`
	rr := doJSON(t, h, http.MethodPost, "/api/drills", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestRegisterDrills(t *testing.T) {
	h := newTestHandler(t)

	body := `{"items":[{"id":"card-1","pos_pattern":"p1","commonality":0.9,"unit":"unit-1"}]}`
	rr := doJSON(t, h, http.MethodPost, "/api/drills", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]int
	decodeBody(t, rr, &resp)
	assert.Equal(t, 1, resp["created"])

	// Re-registering the same drill creates nothing new.
	rr = doJSON(t, h, http.MethodPost, "/api/drills", body)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &resp)
	assert.Equal(t, 0, resp["created"])
}

func TestRegisterDrills_EmptyBodyRejected(t *testing.T) {
	h := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/drills", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/api/drills", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoadDrillMeta_DefaultsCanonical(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	// card-1 omits is_canonical and must default to canonical.
	body := `{"metadata":[
		{"id":"card-1","pattern_group":"group-a"},
		{"id":"card-2","pattern_group":"group-a","is_canonical":false}
	]}`
	rr := doJSON(t, h, http.MethodPost, "/api/drills/meta", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp map[string]int
	decodeBody(t, rr, &resp)
	assert.Equal(t, 2, resp["loaded"])
}

func TestReview_FlowsThroughScheduler(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodPost, "/api/reviews", `{"card_id":"card-1","grade":3}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Card            models.Card `json:"card"`
		IntervalMinutes int64       `json:"interval_minutes"`
		NextDue         time.Time   `json:"next_due"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, "card-1", resp.Card.ID)
	assert.Equal(t, models.StateLearning, resp.Card.State)
	assert.Equal(t, int64(10), resp.IntervalMinutes)
	assert.False(t, resp.NextDue.IsZero())
}

func TestReview_InvalidGrade(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodPost, "/api/reviews", `{"card_id":"card-1","grade":9}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestReview_UnknownCard(t *testing.T) {
	h := newTestHandler(t)

	rr := doJSON(t, h, http.MethodPost, "/api/reviews", `{"card_id":"ghost","grade":3}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestQueue_OrdersByCommonality(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodGet, "/api/queue", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Cards []models.Card `json:"cards"`
		Count int           `json:"count"`
	}
	decodeBody(t, rr, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "card-1", resp.Cards[0].ID, "the more common drill comes first")
	assert.Equal(t, "card-2", resp.Cards[1].ID)
}

func TestQueue_RespectsMax(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodGet, "/api/queue?max=1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, 1, resp.Count)
}

func TestNextCard_PopsAndDrains(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodPost, "/api/queue/next", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var card models.Card
	decodeBody(t, rr, &card)
	assert.Equal(t, "card-1", card.ID)

	// Easy reviews push both cards days into the future; the queue then
	// has nothing to serve.
	for _, id := range []string{"card-1", "card-2"} {
		rr = doJSON(t, h, http.MethodPost, "/api/reviews", `{"card_id":"`+id+`","grade":4}`)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/queue/next", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestDueCards(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodGet, "/api/cards/due", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, 2, resp.Count)
}

func TestGetCard(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodGet, "/api/cards/card-1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var card models.Card
	decodeBody(t, rr, &card)
	assert.Equal(t, "card-1", card.ID)
	assert.Equal(t, models.StateNew, card.State)

	rr = doJSON(t, h, http.MethodGet, "/api/cards/ghost", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestResetCard(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodPost, "/api/reviews", `{"card_id":"card-1","grade":4}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/api/cards/card-1/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var card models.Card
	decodeBody(t, rr, &card)
	assert.Equal(t, models.StateNew, card.State)
	assert.Equal(t, 0, card.Reps)
	assert.Equal(t, "p1", card.PosPattern, "identity fields survive a reset")
}

func TestResetAllCards(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodPost, "/api/cards/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]int
	decodeBody(t, rr, &resp)
	assert.Equal(t, 2, resp["reset"])
}

func TestStats(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	rr := doJSON(t, h, http.MethodPost, "/api/reviews", `{"card_id":"card-1","grade":3}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var stats models.Stats
	decodeBody(t, rr, &stats)
	assert.Equal(t, 2, stats.TotalCards)
	assert.Equal(t, 1, stats.NewCards)
	assert.Equal(t, 1, stats.LearningCards)
	assert.Equal(t, 1, stats.Session.Reviewed)
	assert.Len(t, stats.Cards, 2)
}

func TestHistory_FiltersAndSummarizes(t *testing.T) {
	h := newTestHandler(t)
	registerDrills(t, h)

	reviews := []string{
		`{"card_id":"card-1","grade":3}`,
		`{"card_id":"card-1","grade":1,"error_type":"particle"}`,
		`{"card_id":"card-2","grade":4}`,
	}
	for _, body := range reviews {
		rr := doJSON(t, h, http.MethodPost, "/api/reviews", body)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doJSON(t, h, http.MethodGet, "/api/history?card_id=card-1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Entries []journal.Entry `json:"entries"`
		Count   int             `json:"count"`
	}
	decodeBody(t, rr, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, models.Again, resp.Entries[0].Grade, "newest entry first")
	assert.Equal(t, "particle", resp.Entries[0].ErrorType)

	rr = doJSON(t, h, http.MethodGet, "/api/history/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var summary journal.Summary
	decodeBody(t, rr, &summary)
	assert.Equal(t, 3, summary.TotalReviews)
	assert.Equal(t, 2, summary.Correct)
	assert.Equal(t, 1, summary.Incorrect)
}

func TestHistory_RejectsBadFilters(t *testing.T) {
	h := newTestHandler(t)

	rr := doJSON(t, h, http.MethodGet, "/api/history?grade=9", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/history?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthAndReady(t *testing.T) {
	h := newTestHandler(t)

	rr := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddleware_SetsRequestIDAndSecurityHeaders(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	// A generated ID is attached when the client sends none.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
