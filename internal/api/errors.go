package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/leca/dt-video-gen/internal/apperror"
)

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse(9400, msg))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse(9401, "Authentication required"))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse(9404, msg))
}

// TooLarge writes a 413 error response.
func TooLarge(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse(9413, msg))
}

// WriteError maps err onto a status code and an error envelope.
func WriteError(w http.ResponseWriter, err error) {
	status, apiErr := describe(err)
	writeAPIError(w, status, apiErr)
}

// WriteRetryableError is WriteError with the retryable flag always present.
func WriteRetryableError(w http.ResponseWriter, err error, retryable bool) {
	status, apiErr := describe(err)
	apiErr.Retryable = &retryable
	writeAPIError(w, status, apiErr)
}

func describe(err error) (int, APIError) {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		status := appErr.HTTPStatus()
		return status, APIError{Code: 9000 + status, Kind: string(appErr.Kind), Message: appErr.CallerMessage()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, APIError{Code: 9504, Kind: "timeout", Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, APIError{Code: 9503, Kind: "canceled", Message: "request canceled"}
	default:
		return http.StatusInternalServerError, APIError{Code: 9500, Kind: "internal_error", Message: "internal error"}
	}
}

func writeAPIError(w http.ResponseWriter, status int, apiErr APIError) {
	WriteJSON(w, status, Response{
		Result:   nil,
		Success:  false,
		Errors:   []APIError{apiErr},
		Messages: []APIMessage{},
	})
}
