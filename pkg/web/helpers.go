package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// maxIDLength bounds identifiers accepted from request paths.
const maxIDLength = 64

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	// Handle nil payload
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// RespondValidation writes a 400 response listing the rule each field failed.
func RespondValidation(w http.ResponseWriter, logger *slog.Logger, fields map[string]string) {
	RespondJSON(w, logger, http.StatusBadRequest, map[string]any{"validation_errors": fields})
}

// ParseID extracts and validates the ID from the request path. Returns the ID and a boolean indicating success.
// IDs are opaque strings: UUIDs for new records, numeric strings for records imported from older data files.
func ParseID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || len(id) > maxIDLength || strings.ContainsAny(id, "/\\") {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid ID: %s", r.PathValue("id")))
		return "", false
	}
	return id, true
}
