// Package api provides HTTP handlers and routing for the skyfoto STAC API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/rkm/skyfoto-stac-api/internal/pagination"
	"github.com/rkm/skyfoto-stac-api/internal/search"
	"github.com/rkm/skyfoto-stac-api/internal/storage"
)

// STACError represents a STAC-compliant error response.
type STACError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Standard STAC error codes.
const (
	ErrCodeBadRequest       = "BadRequest"
	ErrCodeNotFound         = "NotFound"
	ErrCodeInvalidParameter = "InvalidParameterValue"
	ErrCodeServerError      = "ServerError"
)

// WriteJSON writes a JSON response with the given status code and value.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response",
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// WriteGeoJSON writes a GeoJSON response with the given status code and value.
// GeoJSON responses use the application/geo+json media type.
func WriteGeoJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode GeoJSON response",
			slog.String("error", err.Error()),
		)
		return err
	}

	return nil
}

// WriteError writes a STAC-compliant error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	errResp := STACError{
		Code:        code,
		Description: message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		slog.Error("failed to encode error response",
			slog.String("error", err.Error()),
		)
	}
}

// WriteBadRequest writes a 400 Bad Request error response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// WriteNotFound writes a 404 Not Found error response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteInvalidParameter writes a 400 Bad Request error for invalid parameters.
func WriteInvalidParameter(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeInvalidParameter, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeServerError, message)
}

// WriteInternalErrorWithRequestID writes a 500 response mentioning the
// request id so clients can reference it in reports.
func WriteInternalErrorWithRequestID(w http.ResponseWriter, message, requestID string) {
	if requestID != "" {
		message = message + " (request id " + requestID + ")"
	}
	WriteInternalError(w, message)
}

// writeSearchError maps the error taxonomy onto HTTP statuses: validation
// failures and bad tokens are client errors with the detail preserved,
// missing rows are 404, and anything from the storage layer is a 500 with
// the cause logged but not leaked.
func (h *Handlers) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *search.ValidationError
	if errors.As(err, &validation) {
		WriteInvalidParameter(w, validation.Error())
		return
	}

	var tokenErr *pagination.TokenDecodeError
	if errors.As(err, &tokenErr) {
		WriteInvalidParameter(w, tokenErr.Error())
		return
	}

	if errors.Is(err, storage.ErrNotFound) {
		WriteNotFound(w, "item not found")
		return
	}

	var storageErr *storage.StorageError
	if errors.As(err, &storageErr) {
		h.logger.Error("storage failure",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("op", storageErr.Op),
			slog.String("error", storageErr.Err.Error()),
		)
		WriteInternalError(w, "search execution failed")
		return
	}

	h.logger.Error("unexpected search failure",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	WriteInternalError(w, "internal server error")
}
