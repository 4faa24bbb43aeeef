// Package httputil holds the JSON response helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	dErrors "vcon/pkg/domain-errors"
)

// MaxBodyBytes bounds request bodies decoded by DecodeJSON.
const MaxBodyBytes = 4 << 20

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error code to an HTTP status. Internal errors never
// leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)
	resp := ErrorResponse{Error: string(code)}
	if status != http.StatusInternalServerError {
		resp.ErrorDescription = err.Error()
	}
	WriteJSON(w, status, resp)
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvalidState:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ReadBody reads a bounded request body. An oversized or unreadable body is
// written as a bad request and ok is false.
func ReadBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "failed to read request body", "error", err)
		}
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable request body"))
		return nil, false
	}
	return body, true
}

// DecodeJSON decodes a bounded JSON request body into T.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	body, ok := ReadBody(w, r, logger)
	if !ok {
		return nil, false
	}
	var req T
	if err := json.Unmarshal(body, &req); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "failed to decode request", "error", err)
		}
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid json payload"))
		return nil, false
	}
	return &req, true
}
