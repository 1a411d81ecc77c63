package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-entities/internal/entitystore"
	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
	"github.com/nerrad567/gray-logic-entities/internal/feature"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// Field details, set for validation errors.
	Field    string   `json:"field,omitempty"`
	Platform string   `json:"platform,omitempty"`
	Expected string   `json:"expected,omitempty"`
	Allowed  []string `json:"allowed,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeDevice         = "device_error"
	ErrCodeUnavailable    = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeValidationError writes a 400 response carrying the failing field.
func writeValidationError(w http.ResponseWriter, err error) {
	body := Error{
		Status:  http.StatusBadRequest,
		Code:    ErrCodeValidation,
		Message: err.Error(),
	}
	var fe *schema.FieldError
	if errors.As(err, &fe) {
		body.Field = fe.Key()
		body.Platform = string(fe.Platform)
		body.Expected = fe.Expected
		body.Allowed = fe.Allowed
	}
	writeJSON(w, http.StatusBadRequest, body)
}

// isValidationError reports whether err is a client-side validation failure.
func isValidationError(err error) bool {
	var fe *schema.FieldError
	return errors.As(err, &fe)
}

// writeEntityError maps entity store errors to responses.
func (s *Server) writeEntityError(w http.ResponseWriter, err error, action string) {
	switch {
	case isValidationError(err):
		writeValidationError(w, err)
	case errors.Is(err, entitystore.ErrEntityNotFound):
		writeNotFound(w, "entity not found")
	case errors.Is(err, entitystore.ErrEntityExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "entity already exists")
	default:
		s.logger.Error("entity store operation failed", "action", action, "error", err)
		writeInternalError(w, "failed to "+action+" entity")
	}
}

// writeNumberError maps number write errors to responses.
func (s *Server) writeNumberError(w http.ResponseWriter, err error) {
	var devErr *feature.DeviceError
	switch {
	case errors.Is(err, feature.ErrNumberNotFound):
		writeNotFound(w, "number not found")
	case errors.Is(err, feature.ErrOutOfRange), errors.Is(err, feature.ErrInvalidNumber):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, feature.ErrNotMutable):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, feature.ErrFeatureUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.As(err, &devErr):
		writeError(w, http.StatusBadGateway, ErrCodeDevice, err.Error())
	default:
		s.logger.Error("number write failed", "error", err)
		writeInternalError(w, "failed to set number value")
	}
}
