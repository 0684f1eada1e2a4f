package handlers

import (
	"encoding/json"
	"net/http"

	"sqlite-viewer/internal/logging"
	"sqlite-viewer/internal/session"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// writeEngineError maps an engine error to a response using its
// classification: unrecoverable errors and gone files are the client's
// problem, the rest are server-side.
func writeEngineError(w http.ResponseWriter, err error, statusCode int) {
	kind, recoverable := session.ClassifyError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]interface{}{
		"error":       err.Error(),
		"errorKind":   kind,
		"recoverable": recoverable,
	})
}
