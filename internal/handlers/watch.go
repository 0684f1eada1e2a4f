package handlers

import (
	"net/http"
)

// GetWatchStatus reports the current watcher state.
func (h *Handlers) GetWatchStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"state": h.session.WatchState().String(),
	})
}

// PostWatchStart begins watching the open file for external changes.
func (h *Handlers) PostWatchStart(w http.ResponseWriter, _ *http.Request) {
	if err := h.session.StartWatch(); err != nil {
		writeEngineError(w, err, http.StatusConflict)
		return
	}
	writeJSONStatus(w, "watching")
}

// PostWatchStop stops the watcher.
func (h *Handlers) PostWatchStop(w http.ResponseWriter, _ *http.Request) {
	h.session.StopWatch()
	writeJSONStatus(w, "stopped")
}
