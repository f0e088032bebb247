package api

import (
	"net/http"

	"github.com/tsuji/bunkei/internal/errors"
	"github.com/tsuji/bunkei/internal/logger"
)

// handleError centralizes error handling for HTTP responses. Every error
// leaves the API as a JSON envelope with a stable code.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.NewInternalError(err)
	}

	if appErr.Status >= 500 {
		log.Error("server error: %v", appErr)
	} else {
		log.Warn("client error: %v", appErr)
	}

	writeJSON(w, r, appErr.Status, map[string]any{
		"error": map[string]any{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
