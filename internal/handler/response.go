package handler

// RESPONSE HELPERS:
// Every success body is wrapped in an envelope:
//   {"data": ...}
//
// Every error body has the same shape:
//   {"error": "not_found", "message": "challenge not found with id 7"}
//
// Outside production a "details" field carries the underlying error text.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/rankboard/internal/apperror"
	"github.com/sakif/rankboard/internal/middleware"
)

// ErrorResponse is the error body returned by every API endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`             // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`           // human-readable
	Field   string `json:"field,omitempty"`   // offending input field, for validation errors
	Details string `json:"details,omitempty"` // development only
}

type envelope struct {
	Data any `json:"data"`
}

// writeJSON sends data inside the {"data": ...} envelope.
func writeJSON(w http.ResponseWriter, status int, data any) {
	writeRaw(w, status, envelope{Data: data})
}

func writeRaw(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// headers are already sent; all we can do is log
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   -> 400 validation_error
//	apperror.ErrUnauthorized -> 401 unauthorized
//	apperror.ErrForbidden    -> 403 forbidden
//	apperror.ErrNotFound     -> 404 not_found
//	apperror.ErrConflict     -> 409 conflict
//	anything else            -> 500 internal_error
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, kind := http.StatusInternalServerError, "internal_error"
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, kind = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status, kind = http.StatusUnauthorized, "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status, kind = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status, kind = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status, kind = http.StatusConflict, "conflict"
		}
		resp := ErrorResponse{Error: kind, Message: appErr.Message, Field: appErr.Field}
		if middleware.DetailsEnabled(r.Context()) && err.Error() != appErr.Message {
			resp.Details = err.Error()
		}
		writeRaw(w, status, resp)
		return
	}

	// Unknown error: never echo it to production clients; it may carry SQL
	// or file paths.
	slog.ErrorContext(r.Context(), "unhandled error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	resp := ErrorResponse{Error: "internal_error", Message: "an unexpected error occurred"}
	if middleware.DetailsEnabled(r.Context()) {
		resp.Details = err.Error()
	}
	writeRaw(w, http.StatusInternalServerError, resp)
}

// writeStatus sends an error body for statuses outside the domain mapping,
// such as 413 and 503.
func writeStatus(w http.ResponseWriter, status int, kind, message string) {
	writeRaw(w, status, ErrorResponse{Error: kind, Message: message})
}
