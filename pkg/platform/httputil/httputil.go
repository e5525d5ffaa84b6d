// Package httputil centralizes the response envelope and domain error
// translation for all HTTP handlers.
//
// Every endpoint answers with the same envelope:
//
//	{"success": bool, "data": ..., "message": "...", "error": "CODE"}
//
// The error strings are part of the client contract: client error
// classification matches on them, so they must not change shape between
// releases.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "punchgate/pkg/domain-errors"
)

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// Stable client-facing error codes.
const (
	ErrMissingParameters  = "MISSING_PARAMETERS"
	ErrUnauthenticated    = "UNAUTHENTICATED"
	ErrPreconditionFailed = "PRECONDITION_FAILED"
	ErrMissingTenant      = "MISSING_TENANT"
	ErrTimecardLocked     = "TIMECARD_LOCKED"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrRateLimited        = "RATE_LIMITED"
	ErrInternal           = "INTERNAL_ERROR"
)

// WriteSuccess writes a 200 envelope with the given payload.
func WriteSuccess(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// WriteError translates a domain error into the envelope. Raw infrastructure
// detail is surfaced only through the details field of 500 responses.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, errStr := statusFor(code)

	env := Envelope{Success: false, Message: dErrors.MessageOf(err), Error: errStr}
	if status == http.StatusInternalServerError {
		env.Message = "internal error"
		env.Details = dErrors.MessageOf(err)
	}
	writeJSON(w, status, env)
}

// WriteErrorAs behaves like WriteError but substitutes an endpoint-specific
// stable error string (e.g. ATTENDANCE_DATA_ERROR) while keeping the status
// derived from the domain code.
func WriteErrorAs(w http.ResponseWriter, err error, errStr string) {
	status, _ := statusFor(dErrors.CodeOf(err))
	env := Envelope{Success: false, Message: dErrors.MessageOf(err), Error: errStr}
	if status == http.StatusInternalServerError {
		env.Message = "internal error"
		env.Details = dErrors.MessageOf(err)
	}
	writeJSON(w, status, env)
}

func statusFor(code dErrors.Code) (int, string) {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest, ErrMissingParameters
	case dErrors.CodeUnauthenticated:
		return http.StatusUnauthorized, ErrUnauthenticated
	case dErrors.CodeForbidden:
		return http.StatusForbidden, ErrPreconditionFailed
	case dErrors.CodeMissingTenant:
		return http.StatusForbidden, ErrMissingTenant
	case dErrors.CodeLocked:
		return http.StatusLocked, ErrTimecardLocked
	case dErrors.CodeNotFound:
		return http.StatusNotFound, ErrNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict, ErrConflict
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests, ErrRateLimited
	default:
		return http.StatusInternalServerError, ErrInternal
	}
}

// DecodeJSON parses the request body into T, answering with a
// MISSING_PARAMETERS envelope when the body is malformed. The second return
// is false when the response has already been written.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var body T
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request body",
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		var zero T
		return zero, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
