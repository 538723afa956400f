package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrPermission   ErrorCode = "PERMISSION"

	// Version errors
	ErrInvalidVersion     ErrorCode = "INVALID_VERSION"
	ErrUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION"
	ErrNotInstalled       ErrorCode = "NOT_INSTALLED"
	ErrNoActiveVersion    ErrorCode = "NO_ACTIVE_VERSION"
	ErrVersionActive      ErrorCode = "VERSION_ACTIVE"

	// Network errors
	ErrNetwork     ErrorCode = "NETWORK"
	ErrRateLimited ErrorCode = "RATE_LIMITED"

	// Integrity errors
	ErrChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigWrite ErrorCode = "CONFIG_WRITE"

	// Build toolchain errors
	ErrToolchain  ErrorCode = "TOOLCHAIN"
	ErrSubprocess ErrorCode = "SUBPROCESS"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileBusy     ErrorCode = "FILE_BUSY"
	ErrFileCreate   ErrorCode = "FILE_CREATE"
	ErrFileWrite    ErrorCode = "FILE_WRITE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
	ErrExtract      ErrorCode = "EXTRACT"
)

// BobError represents a structured error with code and details
type BobError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *BobError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *BobError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *BobError) Is(target error) bool {
	var targetErr *BobError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new BobError with the given code and message
func New(code ErrorCode, message string) *BobError {
	return &BobError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new BobError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *BobError {
	return &BobError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a BobError
func Wrap(err error, code ErrorCode, message string) *BobError {
	if err == nil {
		return nil
	}
	return &BobError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *BobError {
	if err == nil {
		return nil
	}
	return &BobError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *BobError) WithDetail(key string, value interface{}) *BobError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the ErrorCode of err, or ErrUnknown when err carries none.
func CodeOf(err error) ErrorCode {
	var be *BobError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// As is a convenience wrapper around errors.As for *BobError.
func As(err error) (*BobError, bool) {
	var be *BobError
	ok := errors.As(err, &be)
	return be, ok
}
