package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// errorBody is the error half of the response envelope. Code is a
// stable machine-readable identifier; Message is the human detail.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes v as the response body. Encoding goes through a
// buffer first so headers are only sent after a successful encode and
// an encode failure can still produce a proper 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("writing response body", "error", err)
	}
}

// writeData wraps payload in the success envelope: {"data": payload}.
func writeData(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, map[string]any{"data": payload})
}

// writeError emits the error envelope: {"error": {"code", "message"}}.
func writeError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	logger.Debug("api error response", "status", status, "code", code)
	writeJSON(w, status, map[string]any{"error": errorBody{Code: code, Message: message}})
}
