package actions

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/compresr/bedrock-provider/external"
)

// ErrorKind is the closed set of failure categories.
type ErrorKind string

const (
	ErrorConfiguration     ErrorKind = "configuration"
	ErrorRateLimited       ErrorKind = "rate_limited"
	ErrorTransport         ErrorKind = "transport"
	ErrorMalformedResponse ErrorKind = "malformed_response"
	ErrorExtraction        ErrorKind = "extraction"
	ErrorPostProcess       ErrorKind = "post_process"
)

// DefaultErrorCode is used when a failure carries no explicit code.
const DefaultErrorCode = http.StatusInternalServerError

// unknownErrorMessage is used when a failure carries no message at all.
const unknownErrorMessage = "Unknown error"

// Error is a failed invocation. Code 0 means the kind's default.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// code returns the explicit code or the kind's default.
func (e *Error) code() int {
	if e.Code > 0 {
		return e.Code
	}
	switch e.Kind {
	case ErrorRateLimited:
		return http.StatusTooManyRequests
	case ErrorTransport:
		if status := external.StatusCode(e.Err); status > 0 {
			return status
		}
	}
	return DefaultErrorCode
}

// ResultFromError maps any error to the uniform failure result. It is pure
// and total: nil, foreign errors and every ErrorKind map to a failure.
func ResultFromError(err error) Result {
	if err == nil {
		return Result{ErrorCode: DefaultErrorCode, ErrorMessage: unknownErrorMessage}
	}

	var ae *Error
	if !errors.As(err, &ae) {
		code := external.StatusCode(err)
		if code <= 0 {
			code = DefaultErrorCode
		}
		return Result{ErrorCode: code, ErrorMessage: messageOr(err.Error())}
	}

	msg := ae.Message
	if msg == "" && ae.Err != nil {
		msg = ae.Err.Error()
	}
	return Result{ErrorCode: ae.code(), ErrorMessage: messageOr(msg)}
}

func messageOr(msg string) string {
	if msg == "" {
		return unknownErrorMessage
	}
	return msg
}

// KindOf returns the ErrorKind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
