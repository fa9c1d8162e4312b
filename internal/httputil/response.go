package httputil

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/prepwise/partner-server-go/internal/errors"
)

var exposeInternalErrors atomic.Bool

// SetExposeInternalErrors controls whether unexpected error causes are echoed
// back in the response details. Disabled in production.
func SetExposeInternalErrors(expose bool) {
	exposeInternalErrors.Store(expose)
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message"`
	Data       any       `json:"data,omitempty"`
	Metadata   any       `json:"metadata,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success    bool                `json:"success"`
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Code       apperrors.ErrorCode `json:"code"`
	Details    any                 `json:"details,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// WriteSuccess writes data wrapped in the response envelope
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteSuccessWithMeta(w, status, message, data, nil)
}

func WriteSuccessWithMeta(w http.ResponseWriter, status int, message string, data, metadata any) {
	WriteJSON(w, status, Response{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
	})
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		log.Error().Err(err).Msg("unhandled error")
		appErr = apperrors.Internal("An unexpected error occurred")
		if exposeInternalErrors.Load() {
			appErr.Details = map[string]string{"cause": err.Error()}
		}
	}

	status := StatusFromError(appErr)
	WriteErrorWithStatus(w, status, appErr)
}

// WriteErrorWithStatus writes an error with a specific HTTP status code
func WriteErrorWithStatus(w http.ResponseWriter, status int, err *apperrors.AppError) {
	WriteJSON(w, status, ErrorResponse{
		Success:    false,
		StatusCode: status,
		Message:    err.Message,
		Code:       err.Code,
		Details:    err.Details,
		Timestamp:  time.Now().UTC(),
	})
}

// StatusFromError honours an explicit status before falling back to the code mapping.
func StatusFromError(err *apperrors.AppError) int {
	if err.Status != 0 {
		return err.Status
	}
	return statusFromCode(err.Code)
}

// statusFromCode maps ErrorCode to HTTP status code
func statusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 412 Precondition Failed: client-supplied data rejected
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired,
		apperrors.ErrCodeCSVHeaderMissing:
		return http.StatusPreconditionFailed

	// 400 Bad Request
	case apperrors.ErrCodeBadRequest,
		apperrors.ErrCodeInsufficientSeats,
		apperrors.ErrCodeInvalidInviteState:
		return http.StatusBadRequest

	// 401 Unauthorized
	case apperrors.ErrCodeUnauthorized,
		apperrors.ErrCodeInvalidToken,
		apperrors.ErrCodeTokenExpired:
		return http.StatusUnauthorized

	// 403 Forbidden
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden

	// 404 Not Found
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case apperrors.ErrCodeAlreadyExists,
		apperrors.ErrCodeConflict:
		return http.StatusConflict

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 502 Bad Gateway
	case apperrors.ErrCodeExternal:
		return http.StatusBadGateway

	// 500 Internal Server Error
	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
