package handlers

import (
	"errors"
	"net/http"

	"sqlite-viewer/internal/reader"
	"sqlite-viewer/internal/session"
)

// PostRefresh re-reads the file and re-parses every page. The response
// is sent after the reload completes.
func (h *Handlers) PostRefresh(w http.ResponseWriter, r *http.Request) {
	err := h.session.Refresh(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrHeaderChanged):
			writeEngineError(w, err, http.StatusConflict)
		case errors.Is(err, reader.ErrFileGone):
			writeEngineError(w, err, http.StatusGone)
		case errors.Is(err, session.ErrClosed):
			writeEngineError(w, err, http.StatusServiceUnavailable)
		default:
			writeEngineError(w, err, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"status":     "reloaded",
		"totalPages": h.session.PageCount(),
		"generation": h.session.CacheStats().Generation,
	})
}
