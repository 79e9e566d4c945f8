package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"homeclimate/internal/types"
)

// maxRequestBodySize caps request bodies; a full 48h mold-risk batch fits.
const maxRequestBodySize = 1 << 20

// Chassis-level error codes.
const (
	errCodeValidationInvalidJSON types.ErrorCode = "validation_invalid_json"
	errCodeTimeout               types.ErrorCode = "internal_timeout"
)

// APIResponse is the {"data": ...} envelope of every success body.
type APIResponse struct {
	Data any `json:"data"`
}

// APIErrorResponse is the {"error": ...} envelope of every failure body.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible part of an error.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes data with status. If data cannot be marshalled the client gets
// a 500 envelope instead.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an error envelope. Causes wrapped inside an AppError
// are never exposed.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr, status := publicError(err)
	JSON(w, r, status, APIErrorResponse{Error: ErrorDetail{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: types.GetRequestID(r.Context()),
	}})
}

// publicError maps any error onto the public error model: an AppError in the
// chain keeps its code, a blown request deadline is a 504 and everything
// else is an opaque 500.
func publicError(err error) (*types.AppError, int) {
	var appErr *types.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr, appErr.HTTPStatus()
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewAppError(errCodeTimeout, "the request timed out", err), http.StatusGatewayTimeout
	default:
		return types.NewAppError(types.ErrCodeInternalUnexpected, "an unexpected error occurred", err), http.StatusInternalServerError
	}
}

// DecodeJSON reads exactly one JSON value into dst. Unknown fields and
// bodies over 1MB are rejected; every failure is a *types.AppError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(errCodeValidationInvalidJSON, "request body must contain a single JSON object", nil)
	}
	return nil
}

// mapDecodeError turns a json.Decoder failure into an AppError. Bad
// timestamps get their own code so sensor clients can tell them apart from
// broken JSON.
func mapDecodeError(err error) *types.AppError {
	var (
		maxBytesErr *http.MaxBytesError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
		timeErr     *time.ParseError
	)

	msg := "invalid JSON in request body"
	switch {
	case errors.As(err, &maxBytesErr):
		msg = "request body must not exceed 1MB"
	case errors.As(err, &syntaxErr):
		msg = "malformed JSON in request body"
	case errors.As(err, &typeErr):
		return types.NewAppErrorWithDetails(errCodeValidationInvalidJSON, "invalid value for field", err,
			map[string]any{"field": typeErr.Field, "expected": typeErr.Type.String()})
	case errors.As(err, &timeErr):
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTime, "timestamps must be RFC 3339", err,
			map[string]any{"value": timeErr.Value})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		msg = "unknown field in request body: " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	case errors.Is(err, io.EOF):
		msg = "request body must not be empty"
	}
	return types.NewAppError(errCodeValidationInvalidJSON, msg, err)
}
