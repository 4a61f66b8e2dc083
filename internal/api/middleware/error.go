// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
)

// Error codes returned in ErrorResponse.Error.
const (
	ErrNotFound      = "not_found"
	ErrBadRequest    = "bad_request"
	ErrConflict      = "conflict"
	ErrInternalError = "internal_error"
	ErrValidation    = "validation_error"
	ErrUnauthorized  = "unauthorized"
	ErrForbidden     = "forbidden"
	ErrInvalidRange  = "invalid_range"
)

// ErrorResponse is the body of every failed request. RequestID matches the
// X-Request-ID header and the access log line.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// WriteError writes an error response with one of the error codes.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteErrorWithDetails(w, status, errCode, message, nil)
}

// WriteErrorWithDetails writes an error response carrying per-field details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, errCode, message string, details any) {
	WriteJSON(w, status, ErrorResponse{
		Error:     errCode,
		Message:   message,
		Details:   details,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// ErrorRecovery turns a panicking handler into a 500 internal_error.
func ErrorRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[%s] Panic handling %s %s: %v\n%s", RequestID(r.Context()), r.Method, r.URL.Path, err, debug.Stack())
				WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to process request")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
