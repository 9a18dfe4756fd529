package handler

// Every error response has the same shape:
//
//	{"error": "not_found", "message": "tweet not found with id 60d0..."}
//
// with "field" added for validation and cast errors, so clients can point
// at the offending input.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/sakif/videotube/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable type, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending field, if any
}

// writeJSON sets headers and status before the body; header changes after
// the first Write are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			logrus.WithError(err).Error("failed to encode JSON response")
		}
	}
}

// writeError maps a domain error to its HTTP status. Services return
// apperror values and never know about status codes.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := classify(err)
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Never expose raw internal errors; they may carry SQL or file paths.
	logrus.WithError(err).Error("unclassified error reached a handler")
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrCast):
		return http.StatusBadRequest, "cast_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// decodeBody reads a JSON object from the request body.
func decodeBody(r *http.Request) (map[string]any, error) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, apperror.ValidationFailed("", fmt.Sprintf("invalid JSON body: %v", err))
	}
	if body == nil {
		return nil, apperror.ValidationFailed("", "request body must be a JSON object")
	}
	return body, nil
}

// decodeInto reads a JSON body into a typed request struct.
func decodeInto(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.ValidationFailed("", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
