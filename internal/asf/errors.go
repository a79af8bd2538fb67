package asf

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed control-plane call. Code is the HTTP status, or 0 when
// the request never produced a response.
type Error struct {
	Code     int
	Message  string
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	if e.Code == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Code, http.StatusText(e.Code))
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsTimeout reports whether err is the service's "timed out, safe to
// retry" signal. Only a 504 qualifies; transport failures do not.
func IsTimeout(err error) bool {
	return StatusCode(err) == http.StatusGatewayTimeout
}

// ErrorType groups failures by how callers should react.
type ErrorType int

const (
	// ErrorTypeSuccess indicates the call succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates a rejected IPC password (401, 403)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates the request never got a response
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates the service timed out and the call may be repeated
	ErrorTypeRetryable
	// ErrorTypeFatal indicates any other failure
	ErrorTypeFatal
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Classify determines how a caller should treat err.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeFatal
	}
	switch {
	case e.Code == 0:
		return ErrorTypeNetwork
	case e.Code == http.StatusUnauthorized, e.Code == http.StatusForbidden:
		return ErrorTypeCredential
	case e.Code == http.StatusGatewayTimeout:
		return ErrorTypeRetryable
	default:
		return ErrorTypeFatal
	}
}
