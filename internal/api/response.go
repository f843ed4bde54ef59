package api

import (
	"encoding/json"
	"net/http"

	"drone-flight/registry/internal/logging"
	"drone-flight/registry/internal/models/dtos"
)

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("JSON encode failed", "error", err.Error())
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, dtos.ErrorResponse{Error: message})
}

func respondWithErrorDetails(w http.ResponseWriter, statusCode int, message, details string) {
	respondJSON(w, statusCode, dtos.ErrorResponse{Error: message, Details: details})
}
