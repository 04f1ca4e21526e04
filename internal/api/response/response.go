// Package response writes the service's JSON bodies. Every error path in
// the API uses the same flat envelope; the shape and codes are part of the
// external contract.
package response

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in the envelope.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeImageNotFound     = "IMAGE_NOT_FOUND"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeServiceError      = "SERVICE_ERROR"
)

type errorEnvelope struct {
	Error  string `json:"error"`
	Status string `json:"status"`
	Code   string `json:"code"`
}

// JSON writes data as a 200 response.
func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

// Error writes the uniform error envelope. Binary endpoints use it too —
// a failed image fetch gets a JSON envelope, never corrupt binary output.
func Error(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{
		Error:  message,
		Status: "failed",
		Code:   code,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
