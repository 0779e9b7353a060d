package server

import (
	"encoding/json"
	"net/http"

	"github.com/searchbox/searchbox/internal/logging"
)

// sendJSON writes a JSON response with the given status code.
func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get().Error().Err(err).Msg("failed to encode response")
	}
}

// sendError writes a JSON error payload with the given status code.
func sendError(w http.ResponseWriter, status int, msg string) {
	sendJSON(w, status, map[string]string{"error": msg})
}
