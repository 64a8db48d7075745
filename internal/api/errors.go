// Package api provides the HTTP handlers and error envelope of the
// leaderboard API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/leaderhub/internal/kpi"
	"github.com/onnwee/leaderhub/internal/leaderboard"
	"github.com/onnwee/leaderhub/internal/middleware"
	"github.com/onnwee/leaderhub/internal/ranking"
)

// Error codes returned in the envelope.
const (
	// ErrCodeValidation indicates a malformed market id, direction or position.
	ErrCodeValidation = "validation_error"

	// ErrCodeInvalidDimension indicates a dimension outside the dimension table.
	ErrCodeInvalidDimension = "invalid_dimension"

	// ErrCodeDimensionDisabled indicates a known dimension this deployment does not serve.
	ErrCodeDimensionDisabled = "dimension_disabled"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeForbidden indicates a caller without access, such as a wrong
	// internal token or a position that has no leaderboard.
	ErrCodeForbidden = "forbidden"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeMethodNotAllowed indicates an unsupported HTTP method.
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse is the body of every API error:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError records code for the logging middleware and writes the error
// envelope with status.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)

	data, err := json.Marshal(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status used for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidDimension:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeDimensionDisabled:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NotFound answers any unrouted path with a not_found envelope.
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})
}

// MethodNotAllowed answers with a method_not_allowed envelope and an Allow
// header listing allowed.
func MethodNotAllowed(allowed ...string) http.Handler {
	allow := strings.Join(allowed, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed,
			fmt.Sprintf("Method %s is not allowed", r.Method))
	})
}

// writeServiceError maps domain errors to the envelope. Unknown errors are
// logged and reported as internal_error without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var code, message string
	switch {
	case errors.Is(err, ranking.ErrInvalidDimension):
		code, message = ErrCodeInvalidDimension, err.Error()
	case errors.Is(err, leaderboard.ErrDimensionDisabled):
		code, message = ErrCodeDimensionDisabled, err.Error()
	case errors.Is(err, kpi.ErrMarketNotFound):
		code, message = ErrCodeNotFound, "Market not found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(r.Context(), "leaderboard request aborted", "error", err)
		code, message = ErrCodeInternal, "Request timed out"
	default:
		slog.ErrorContext(r.Context(), "leaderboard request failed", "error", err)
		code, message = ErrCodeInternal, "Failed to compute leaderboard"
	}
	WriteError(w, r.Context(), StatusCodeMapping(code), code, message)
}

// writeJSON encodes v with status 200. Encoding happens before the status is
// sent so a value that cannot be encoded yields a 500 envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}

func jsonEncode(w http.ResponseWriter, v any) error {
	return json.NewEncoder(w).Encode(v)
}
