// Package errors provides unified error handling with structured error codes.
// Codes classify failures at component boundaries so callers can log, count, and
// decide retryability without string matching.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies a failure class.
type Code string

const (
	CodeUnknown     Code = "UNKNOWN"
	CodeInternal    Code = "INTERNAL"
	CodeInvalid     Code = "INVALID_ARGUMENT"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeTimeout     Code = "TIMEOUT"
	CodeCancelled   Code = "CANCELLED"

	CodeCaptureFailed Code = "CAPTURE_FAILED"
	CodeRegionInvalid Code = "REGION_INVALID"

	CodeOCRFailed          Code = "OCR_FAILED"
	CodeSummaryFailed      Code = "SUMMARY_FAILED"
	CodeLLMInvalidResponse Code = "LLM_INVALID_RESPONSE"
	CodeLLMRateLimited     Code = "LLM_RATE_LIMITED"

	CodeTTSFailed      Code = "TTS_FAILED"
	CodePlaybackFailed Code = "PLAYBACK_FAILED"
	CodeDuckingFailed  Code = "DUCKING_FAILED"

	CodeJournalFailed Code = "JOURNAL_FAILED"
	CodeConfigMissing Code = "CONFIG_MISSING"
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromHTTPStatus classifies a non-2xx response from a remote API.
func FromHTTPStatus(status int, body string) *AppError {
	var code Code
	switch {
	case status == http.StatusTooManyRequests:
		code = CodeLLMRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = CodeTimeout
	case status >= 500:
		code = CodeUnavailable
	case status >= 400:
		code = CodeInvalid
	default:
		code = CodeUnknown
	}
	return Newf(code, "remote returned %d", status).WithMetadata("body", truncate(body, 200))
}

// FromContext maps context errors onto codes, passing other errors through as-is.
func FromContext(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrapf(err, CodeTimeout, "%s timed out", op)
	case stderrors.Is(err, context.Canceled):
		return Wrapf(err, CodeCancelled, "%s cancelled", op)
	}
	return err
}

// CodeOf returns the code of the outermost AppError in the chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeLLMRateLimited:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
