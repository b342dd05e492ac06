// Package apperror defines the error kinds surfaced to callers of the
// generation service.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, caller-visible error category.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindInvalidImage  Kind = "invalid_image"
	KindSubmission    Kind = "submission_error"
	KindRetrieval     Kind = "retrieval_error"
	KindStatus        Kind = "status_error"
	KindTransient     Kind = "transient_remote_error"
	KindStorage       Kind = "storage_error"
	KindConfiguration Kind = "configuration_error"
)

// maxBodyInMessage caps how much of an upstream body is echoed back.
const maxBodyInMessage = 4 << 10

// Error is an application error carrying its kind, the upstream status code
// (when a remote call produced it) and whether the caller may retry later.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int
	Body           string
	Retryable      bool
	Err            error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.UpstreamStatus != 0 {
		msg = fmt.Sprintf("%s (upstream status %d)", msg, e.UpstreamStatus)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error onto the status returned to the caller.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInvalidImage:
		return http.StatusBadRequest
	case KindSubmission, KindRetrieval, KindStatus:
		if e.UpstreamStatus >= 400 && e.UpstreamStatus <= 599 {
			return e.UpstreamStatus
		}
		return http.StatusBadGateway
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CallerMessage is the human-readable message, including a bounded excerpt of
// the upstream body when there is one.
func (e *Error) CallerMessage() string {
	if e.Body == "" {
		return e.Message
	}
	body := e.Body
	if len(body) > maxBodyInMessage {
		body = body[:maxBodyInMessage]
	}
	return e.Message + ": " + body
}

// Validation reports missing or malformed caller input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// InvalidImage reports an unreadable or corrupt source image.
func InvalidImage(msg string, err error) *Error {
	return &Error{Kind: KindInvalidImage, Message: msg, Err: err}
}

// Storage reports a local filesystem failure.
func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// Configuration reports a missing default or setting.
func Configuration(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

// Submission reports a non-success response to a create or remix call.
func Submission(status int, body string) *Error {
	return &Error{Kind: KindSubmission, Message: "remote service rejected the request", UpstreamStatus: status, Body: body}
}

// Retrieval reports a non-success response to an artifact download.
func Retrieval(status int, body string) *Error {
	return &Error{Kind: KindRetrieval, Message: "remote service refused the download", UpstreamStatus: status, Body: body}
}

// Status reports a non-retryable failure while reading job status.
func Status(status int, body string, err error) *Error {
	return &Error{Kind: KindStatus, Message: "remote status request failed", UpstreamStatus: status, Body: body, Err: err}
}

// Transient reports a failure that is likely to succeed if retried.
func Transient(status int, body string, err error) *Error {
	return &Error{Kind: KindTransient, Message: "remote service temporarily unavailable", UpstreamStatus: status, Body: body, Retryable: true, Err: err}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTransient reports whether err was classified as transient.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
