package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidArgument    = "invalid_argument"
	CodeNotFound           = "not_found"
	CodeInvalidState       = "invalid_state"
	CodePreconditionFailed = "precondition_failed"
	CodeEmptyArchive       = "empty_archive"
	CodeResourceExhausted  = "resource_exhausted"
	CodeCanceled           = "canceled"
	CodeInternal           = "internal"
)

// APIError is a structured error returned by the HTTP API.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return fmt.Sprintf("transmit api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return "transmit api error"
}

// Retryable reports whether the same request may succeed later without
// changes: the server shed load or failed internally.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Code == CodeResourceExhausted || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// FromServer reports whether the error came from a transmit server. Proxies
// and unrelated services answer without a code.
func (e *APIError) FromServer() bool {
	return e != nil && e.Code != ""
}

// ErrorCodeOf returns the API code of err, or "" when err is not an APIError.
func ErrorCodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	return code != "" && ErrorCodeOf(err) == code
}

// IsNotFound reports a missing transmittal, document or recipient.
func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }

// IsInvalidState reports a transition rejected by the transmittal lifecycle.
func IsInvalidState(err error) bool { return IsCode(err, CodeInvalidState) }

// IsEmptyArchive reports a download where no document could be fetched.
func IsEmptyArchive(err error) bool { return IsCode(err, CodeEmptyArchive) }
